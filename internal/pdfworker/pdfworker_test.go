package pdfworker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/scjn/scjn-pipeline/internal/domain"
	"github.com/scjn/scjn-pipeline/internal/messages"
	"github.com/scjn/scjn-pipeline/internal/pdfproc"
)

type harness struct {
	processed []messages.PDFProcessed
	errs      []messages.WorkerErrorMsg
}

func newTestWorker(t *testing.T, cfg Config, overrides Dependencies) (*Worker, *harness) {
	t.Helper()
	h := &harness{}
	deps := overrides
	deps.EmitProcessed = func(ctx context.Context, evt messages.PDFProcessed) {
		h.processed = append(h.processed, evt)
	}
	deps.EmitError = func(ctx context.Context, errMsg messages.WorkerErrorMsg) {
		h.errs = append(h.errs, errMsg)
	}
	deps.Now = func() time.Time { return time.Unix(0, 0) }
	return New(cfg, deps), h
}

func TestProcessEmptyPathIsNonRecoverable(t *testing.T) {
	w, h := newTestWorker(t, DefaultConfig(), Dependencies{})

	w.Process(context.Background(), messages.ProcessPDF{DocumentID: "doc-1"})

	if len(h.errs) != 1 || h.errs[0].Recoverable {
		t.Fatalf("expected one non-recoverable error, got %+v", h.errs)
	}
	if len(h.processed) != 0 {
		t.Fatal("no PDFProcessed should be emitted")
	}
}

func TestProcessReadFileFailureIsNonRecoverable(t *testing.T) {
	w, h := newTestWorker(t, DefaultConfig(), Dependencies{
		ReadFile: func(path string) ([]byte, error) { return nil, fmt.Errorf("boom") },
	})

	w.Process(context.Background(), messages.ProcessPDF{DocumentID: "doc-1", PDFPath: "/tmp/whatever.pdf"})

	if len(h.errs) != 1 || h.errs[0].Recoverable {
		t.Fatalf("expected one non-recoverable error, got %+v", h.errs)
	}
}

func TestProcessEmptyBytesIsNonRecoverable(t *testing.T) {
	w, h := newTestWorker(t, DefaultConfig(), Dependencies{
		ReadFile: func(path string) ([]byte, error) { return []byte{}, nil },
	})

	w.Process(context.Background(), messages.ProcessPDF{DocumentID: "doc-1", PDFPath: "/tmp/whatever.pdf"})

	if len(h.errs) != 1 || h.errs[0].Recoverable {
		t.Fatalf("expected one non-recoverable error, got %+v", h.errs)
	}
	if h.errs[0].Message != pdfproc.ErrEmptyInput.Error() {
		t.Fatalf("message = %q, want %q", h.errs[0].Message, pdfproc.ErrEmptyInput.Error())
	}
}

func TestProcessNoExtractableTextIsRecoverable(t *testing.T) {
	w, h := newTestWorker(t, DefaultConfig(), Dependencies{
		ReadFile:    func(path string) ([]byte, error) { return []byte("%PDF-1.4 scanned image only"), nil },
		ExtractText: func(raw []byte) (string, error) { return "", pdfproc.ErrNoText },
	})

	w.Process(context.Background(), messages.ProcessPDF{DocumentID: "doc-1", PDFPath: "/tmp/whatever.pdf"})

	if len(h.errs) != 1 || !h.errs[0].Recoverable {
		t.Fatalf("expected one recoverable error, got %+v", h.errs)
	}
}

func TestProcessCorruptExtractionIsNonRecoverable(t *testing.T) {
	w, h := newTestWorker(t, DefaultConfig(), Dependencies{
		ReadFile:    func(path string) ([]byte, error) { return []byte("not really a pdf"), nil },
		ExtractText: func(raw []byte) (string, error) { return "", fmt.Errorf("pdfproc: malformed xref table") },
	})

	w.Process(context.Background(), messages.ProcessPDF{DocumentID: "doc-1", PDFPath: "/tmp/whatever.pdf"})

	if len(h.errs) != 1 || h.errs[0].Recoverable {
		t.Fatalf("expected one non-recoverable error, got %+v", h.errs)
	}
}

func TestProcessChunkingFailureIsRecoverable(t *testing.T) {
	w, h := newTestWorker(t, DefaultConfig(), Dependencies{
		ReadFile:    func(path string) ([]byte, error) { return []byte("%PDF-1.4 content"), nil },
		ExtractText: func(raw []byte) (string, error) { return "algo de texto", nil },
		Chunk: func(documentID, text string, cfg pdfproc.Config) []domain.TextChunk {
			return nil
		},
	})

	w.Process(context.Background(), messages.ProcessPDF{DocumentID: "doc-1", PDFPath: "/tmp/whatever.pdf"})

	if len(h.errs) != 1 || !h.errs[0].Recoverable {
		t.Fatalf("expected one recoverable error, got %+v", h.errs)
	}
}

func TestProcessHappyPathEmitsChunksWithSourceURLAndCaches(t *testing.T) {
	stubChunks := []domain.TextChunk{
		{ID: "doc-1-chunk-0000", DocumentID: "doc-1", Content: "articulo uno", TokenCount: 10, ChunkIndex: 0},
		{ID: "doc-1-chunk-0001", DocumentID: "doc-1", Content: "articulo dos", TokenCount: 15, ChunkIndex: 1},
	}
	w, h := newTestWorker(t, DefaultConfig(), Dependencies{
		ReadFile:    func(path string) ([]byte, error) { return []byte("%PDF-1.4 content"), nil },
		ExtractText: func(raw []byte) (string, error) { return "articulo uno articulo dos", nil },
		Chunk: func(documentID, text string, cfg pdfproc.Config) []domain.TextChunk {
			return append([]domain.TextChunk(nil), stubChunks...)
		},
	})

	w.Process(context.Background(), messages.ProcessPDF{
		DocumentID: "doc-1",
		PDFPath:    "/tmp/whatever.pdf",
		SourceURL:  "https://example.test/reforma.pdf",
	})

	if len(h.errs) != 0 {
		t.Fatalf("unexpected errors: %v", h.errs)
	}
	if len(h.processed) != 1 {
		t.Fatalf("expected one PDFProcessed, got %d", len(h.processed))
	}
	evt := h.processed[0]
	if evt.TotalTokens != 25 {
		t.Fatalf("TotalTokens = %d, want 25", evt.TotalTokens)
	}
	if len(evt.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(evt.Chunks))
	}
	for _, c := range evt.Chunks {
		if c.Metadata["source_url"] != "https://example.test/reforma.pdf" {
			t.Fatalf("chunk %s missing source_url metadata: %+v", c.ID, c.Metadata)
		}
	}

	cached := w.Chunks("doc-1")
	if len(cached) != 2 {
		t.Fatalf("Chunks() returned %d, want 2", len(cached))
	}
}

func TestChunksReturnsEmptyForUnknownDocument(t *testing.T) {
	w, _ := newTestWorker(t, DefaultConfig(), Dependencies{})

	if got := w.Chunks("nonexistent"); len(got) != 0 {
		t.Fatalf("expected no chunks, got %v", got)
	}
}
