// Package pdfproc implements the PDF Processor Worker's two jobs: text
// extraction from reform PDFs and legal-boundary-aware chunking of the
// extracted text, plus the extraction-confidence heuristic that
// accompanies each PDFProcessed event.
package pdfproc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEmptyInput is returned for zero-byte PDF payloads — a non-recoverable
// condition, same as a corrupted file.
var ErrEmptyInput = fmt.Errorf("pdfproc: empty pdf input")

// ErrNoText is returned when extraction succeeds structurally but yields
// no text at all — recoverable, since a second attempt (e.g. after a
// re-download) may produce a better PDF.
var ErrNoText = fmt.Errorf("pdfproc: no extractable text")

// ExtractText pulls the text layer out of a PDF's raw bytes. OCR for
// image-only pages is deliberately out of scope; a PDF with no text layer
// returns ErrNoText.
func ExtractText(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyInput
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("pdfproc: open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue // a single bad page shouldn't sink the whole document
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
