// Package scraper implements the Scraper Worker (spec §4.6): fetches and
// parses one document's detail page, maps it onto the Document aggregate,
// tells the Coordinator and Persistence about it, and best-effort
// downloads any reform PDFs for the PDF Processor Worker to pick up.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/scjn/scjn-pipeline/internal/domain"
	"github.com/scjn/scjn-pipeline/internal/fetch"
	"github.com/scjn/scjn-pipeline/internal/htmlparse"
	"github.com/scjn/scjn-pipeline/internal/messages"
	"github.com/scjn/scjn-pipeline/internal/ratelimit"
)

// DefaultPDFMaxBytes is the documented default max-size ceiling for reform
// PDF downloads (spec §4.6 step 6).
const DefaultPDFMaxBytes = 50 * 1024 * 1024

// Config holds the Worker's fixed, deployment-level settings. URL
// templates take the q_param via fmt.Sprintf's single %s verb.
type Config struct {
	DetailURLTemplate string
	PDFURLTemplate    string
	PDFMaxBytes       int64
	// PDFDir is where downloaded reform PDFs are staged before a
	// ProcessPDF command is dispatched carrying the file's path.
	PDFDir string
}

// DefaultConfig returns the documented default.
func DefaultConfig() Config {
	return Config{PDFMaxBytes: DefaultPDFMaxBytes}
}

// Dependencies are the collaborators a Worker talks to.
type Dependencies struct {
	Fetch               fetch.Fetcher
	Limiter             ratelimit.Limiter
	EmitDownloaded      func(ctx context.Context, evt messages.DocumentDownloaded)
	SaveDocument        func(ctx context.Context, cmd messages.SaveDocument)
	DispatchProcessPDF  func(ctx context.Context, cmd messages.ProcessPDF)
	EmitError           func(ctx context.Context, errMsg messages.WorkerErrorMsg)
	Now                 func() time.Time
	NewID               func() string
	Logger              *slog.Logger
}

// Worker is stateless beyond its injected Dependencies.
type Worker struct {
	cfg  Config
	deps Dependencies
}

// New builds a Worker.
func New(cfg Config, deps Dependencies) *Worker {
	if cfg.PDFMaxBytes <= 0 {
		cfg.PDFMaxBytes = DefaultPDFMaxBytes
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Worker{cfg: cfg, deps: deps}
}

// Download runs spec §4.6's algorithm.
func (w *Worker) Download(ctx context.Context, cmd messages.Download) {
	if err := w.deps.Limiter.Wait(ctx); err != nil {
		w.emitError(ctx, cmd, err, fetch.IsRecoverable(err))
		return
	}

	detailURL := fmt.Sprintf(w.cfg.DetailURLTemplate, cmd.QParam)
	raw, err := w.deps.Fetch.FetchHTML(ctx, detailURL)
	if err != nil {
		w.emitError(ctx, cmd, err, fetch.IsRecoverable(err))
		return
	}

	detail, err := htmlparse.ParseDocumentDetail(raw)
	if err != nil {
		w.emitError(ctx, cmd, err, false)
		return
	}

	doc := w.buildDocument(cmd.QParam, detailURL, detail)
	env := messages.Envelope{CorrelationID: cmd.CorrelationID, Timestamp: w.deps.Now()}

	w.deps.EmitDownloaded(ctx, messages.DocumentDownloaded{Envelope: env, Document: doc})
	w.deps.SaveDocument(ctx, messages.SaveDocument{Envelope: env, Document: doc})

	if cmd.IncludePDF {
		w.downloadReformPDFs(ctx, cmd, doc, detail.Reforms)
	}
}

// buildDocument maps parsed strings onto variants via the domain package's
// case-normalized lookup tables (spec §4.6 step 4); dates are strict
// DD/MM/YYYY and already nil on any malformed input courtesy of the
// Detail Parser.
func (w *Worker) buildDocument(qParam, sourceURL string, detail domain.DocumentDetailResult) domain.Document {
	reforms := make([]domain.Reform, len(detail.Reforms))
	for i, rr := range detail.Reforms {
		reforms[i] = domain.Reform{
			ID:              w.deps.NewID(),
			QParam:          rr.QParam,
			Title:           rr.Title,
			PublicationDate: rr.PublicationDate,
			GazetteSection:  rr.GazetteSection,
		}
	}
	return domain.Document{
		ID:              w.deps.NewID(),
		QParam:          qParam,
		Title:           detail.Title,
		ShortTitle:      htmlparse.ShortTitle(detail.Title),
		Category:        detail.Category,
		Scope:           detail.Scope,
		Status:          detail.Status,
		PublicationDate: detail.PublicationDate,
		ExpeditionDate:  detail.ExpeditionDate,
		Articles:        detail.Articles,
		Reforms:         reforms,
		SourceURL:       sourceURL,
	}
}

// downloadReformPDFs best-effort fetches every reform's PDF and dispatches
// a ProcessPDF command for each one staged successfully. PDF failures are
// swallowed (logged, non-fatal to the parent document) per spec §4.6 step 6.
func (w *Worker) downloadReformPDFs(ctx context.Context, cmd messages.Download, doc domain.Document, reformResults []domain.ReformResult) {
	for i, rr := range reformResults {
		if !rr.HasPDF || i >= len(doc.Reforms) {
			continue
		}
		reform := doc.Reforms[i]

		if err := w.deps.Limiter.Wait(ctx); err != nil {
			w.deps.Logger.Warn("scraper: pdf rate limit wait cancelled", "q_param", rr.QParam, "error", err)
			continue
		}

		pdfURL := fmt.Sprintf(w.cfg.PDFURLTemplate, rr.QParam)
		pdfBytes, err := w.deps.Fetch.FetchPDF(ctx, pdfURL, w.cfg.PDFMaxBytes)
		if err != nil {
			w.deps.Logger.Warn("scraper: reform pdf fetch failed", "q_param", rr.QParam, "error", err)
			continue
		}

		path, err := w.stagePDF(doc.ID, reform.ID, pdfBytes)
		if err != nil {
			w.deps.Logger.Warn("scraper: failed to stage reform pdf", "q_param", rr.QParam, "error", err)
			continue
		}

		w.deps.DispatchProcessPDF(ctx, messages.ProcessPDF{
			Envelope:   messages.Envelope{CorrelationID: cmd.CorrelationID, Timestamp: w.deps.Now()},
			DocumentID: doc.ID,
			PDFPath:    path,
			SourceURL:  pdfURL,
		})
	}
}

func (w *Worker) stagePDF(documentID, reformID string, data []byte) (string, error) {
	if err := os.MkdirAll(w.cfg.PDFDir, 0o755); err != nil {
		return "", fmt.Errorf("scraper: mkdir %s: %w", w.cfg.PDFDir, err)
	}
	path := filepath.Join(w.cfg.PDFDir, fmt.Sprintf("%s-%s.pdf", documentID, reformID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("scraper: write %s: %w", path, err)
	}
	return path, nil
}

func (w *Worker) emitError(ctx context.Context, cmd messages.Download, err error, recoverable bool) {
	var pe *domain.ParseError
	if errors.As(err, &pe) {
		recoverable = false
	}
	w.deps.EmitError(ctx, messages.WorkerErrorMsg{
		Envelope:    messages.Envelope{CorrelationID: cmd.CorrelationID, Timestamp: w.deps.Now()},
		QParam:      cmd.QParam,
		Recoverable: recoverable,
		Message:     err.Error(),
	})
}
