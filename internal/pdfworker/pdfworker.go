// Package pdfworker implements the PDF Processor Worker (spec §4.7):
// extracts text from a reform PDF, chunks it along legal boundaries, and
// reports aggregate token count and extraction confidence.
package pdfworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/scjn/scjn-pipeline/internal/domain"
	"github.com/scjn/scjn-pipeline/internal/messages"
	"github.com/scjn/scjn-pipeline/internal/pdfproc"
)

// ErrEmptyPath is returned when a ProcessPDF command carries no pdf_path.
var ErrEmptyPath = fmt.Errorf("pdfworker: empty pdf path")

// Config controls chunking. Extraction has no tunables beyond the PDF
// bytes themselves.
type Config struct {
	Chunker pdfproc.Config
}

// DefaultConfig returns the documented chunker defaults.
func DefaultConfig() Config {
	return Config{Chunker: pdfproc.DefaultConfig()}
}

// Dependencies are the collaborators a Worker talks to. ExtractText and
// Chunk default to the real pdfproc functions; tests override them to
// exercise the worker's error-classification and cache logic without a
// real PDF binary on disk.
type Dependencies struct {
	ReadFile      func(path string) ([]byte, error)
	ExtractText   func(raw []byte) (string, error)
	Chunk         func(documentID, text string, cfg pdfproc.Config) []domain.TextChunk
	EmitProcessed func(ctx context.Context, evt messages.PDFProcessed)
	EmitError     func(ctx context.Context, errMsg messages.WorkerErrorMsg)
	Now           func() time.Time
	Logger        *slog.Logger
}

// Worker caches the chunks it produces per document_id, for introspection
// and tests, per spec §4.7.
type Worker struct {
	cfg  Config
	deps Dependencies

	mu    sync.Mutex
	cache map[string][]domain.TextChunk
}

// New builds a Worker.
func New(cfg Config, deps Dependencies) *Worker {
	if cfg.Chunker.MaxTokens <= 0 {
		cfg.Chunker = pdfproc.DefaultConfig()
	}
	if deps.ReadFile == nil {
		deps.ReadFile = os.ReadFile
	}
	if deps.ExtractText == nil {
		deps.ExtractText = pdfproc.ExtractText
	}
	if deps.Chunk == nil {
		deps.Chunk = pdfproc.Chunk
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Worker{cfg: cfg, deps: deps, cache: make(map[string][]domain.TextChunk)}
}

// Process runs spec §4.7's algorithm.
func (w *Worker) Process(ctx context.Context, cmd messages.ProcessPDF) {
	if cmd.PDFPath == "" {
		w.emitError(ctx, cmd, ErrEmptyPath, false)
		return
	}

	raw, err := w.deps.ReadFile(cmd.PDFPath)
	if err != nil {
		w.emitError(ctx, cmd, fmt.Errorf("pdfworker: read %s: %w", cmd.PDFPath, err), false)
		return
	}
	if len(raw) == 0 {
		w.emitError(ctx, cmd, pdfproc.ErrEmptyInput, false)
		return
	}

	text, err := w.deps.ExtractText(raw)
	if err != nil {
		// Empty-after-extraction is the one recoverable extraction
		// failure (a retry on a re-fetched PDF may do better); corruption
		// and password-protection are not.
		w.emitError(ctx, cmd, err, errors.Is(err, pdfproc.ErrNoText))
		return
	}

	chunks := w.deps.Chunk(cmd.DocumentID, text, w.cfg.Chunker)
	if len(chunks) == 0 {
		w.emitError(ctx, cmd, fmt.Errorf("pdfworker: chunking produced no chunks for non-empty text"), true)
		return
	}

	totalTokens := 0
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]string)
		}
		chunks[i].Metadata["source_url"] = cmd.SourceURL
		totalTokens += chunks[i].TokenCount
	}

	w.mu.Lock()
	w.cache[cmd.DocumentID] = append(w.cache[cmd.DocumentID], chunks...)
	w.mu.Unlock()

	w.deps.EmitProcessed(ctx, messages.PDFProcessed{
		Envelope:             messages.Envelope{CorrelationID: cmd.CorrelationID, Timestamp: w.deps.Now()},
		DocumentID:           cmd.DocumentID,
		Chunks:               chunks,
		TotalTokens:          totalTokens,
		ExtractionConfidence: pdfproc.ExtractionConfidence(text),
	})
}

// Chunks returns a copy of the chunks previously cached for documentID.
func (w *Worker) Chunks(documentID string) []domain.TextChunk {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.TextChunk(nil), w.cache[documentID]...)
}

func (w *Worker) emitError(ctx context.Context, cmd messages.ProcessPDF, err error, recoverable bool) {
	w.deps.EmitError(ctx, messages.WorkerErrorMsg{
		Envelope:        messages.Envelope{CorrelationID: cmd.CorrelationID, Timestamp: w.deps.Now()},
		Recoverable:     recoverable,
		Message:         err.Error(),
		OriginalSubject: messages.SubjectProcessPDF,
	})
}
