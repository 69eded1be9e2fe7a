package scraper

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/scjn/scjn-pipeline/internal/fetch"
	"github.com/scjn/scjn-pipeline/internal/messages"
	"github.com/scjn/scjn-pipeline/internal/ratelimit"
)

const detailHTMLWithPDF = `<html><body>
<div id="ordenamientoDetalle">
<h1>Ley Federal de Trabajo</h1>
<table>
<tr><td>Tipo de Ordenamiento:</td><td>Ley</td></tr>
<tr><td>Ambito:</td><td>Federal</td></tr>
<tr><td>Estatus:</td><td>Vigente</td></tr>
<tr><td>Fecha de Publicacion:</td><td>01/05/1970</td></tr>
</table>
<div class="articulo"><h3>Art&iacute;culo 1</h3><p>Contenido.</p></div>
<table class="reformasTable">
<tr class="dxgvDataRow">
<td>15/06/1995</td><td>DOF 15-06-1995</td>
<td><a href="wfOrdenamientoDetalle.aspx?q=Reforma001">ver</a></td>
<td><a href="AbrirDocReforma.aspx?q=Reforma001">pdf</a></td>
</tr>
</table>
</div>
</body></html>`

const detailHTMLNoReforms = `<html><body>
<div id="ordenamientoDetalle">
<h1>Ley Sin Reformas</h1>
<table>
<tr><td>Tipo de Ordenamiento:</td><td>Ley</td></tr>
</table>
<div class="articulo"><h3>Art&iacute;culo 1</h3><p>Contenido.</p></div>
</div>
</body></html>`

type fakeFetcher struct {
	html    map[string]string
	htmlErr map[string]error
	pdf     map[string][]byte
	pdfErr  map[string]error
}

func (f *fakeFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	if err, ok := f.htmlErr[url]; ok {
		return "", err
	}
	if html, ok := f.html[url]; ok {
		return html, nil
	}
	return "", fmt.Errorf("fakeFetcher: no html for %s", url)
}

func (f *fakeFetcher) FetchPDF(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	if err, ok := f.pdfErr[url]; ok {
		return nil, err
	}
	if data, ok := f.pdf[url]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("fakeFetcher: no pdf for %s", url)
}

type harness struct {
	downloaded []messages.DocumentDownloaded
	saved      []messages.SaveDocument
	processPDF []messages.ProcessPDF
	errs       []messages.WorkerErrorMsg
}

func newTestWorker(t *testing.T, f *fakeFetcher, cfg Config) (*Worker, *harness) {
	t.Helper()
	if cfg.PDFDir == "" {
		cfg.PDFDir = t.TempDir()
	}
	h := &harness{}
	ids := 0
	deps := Dependencies{
		Fetch:   f,
		Limiter: ratelimit.NoOp{},
		EmitDownloaded: func(ctx context.Context, evt messages.DocumentDownloaded) {
			h.downloaded = append(h.downloaded, evt)
		},
		SaveDocument: func(ctx context.Context, cmd messages.SaveDocument) {
			h.saved = append(h.saved, cmd)
		},
		DispatchProcessPDF: func(ctx context.Context, cmd messages.ProcessPDF) {
			h.processPDF = append(h.processPDF, cmd)
		},
		EmitError: func(ctx context.Context, errMsg messages.WorkerErrorMsg) {
			h.errs = append(h.errs, errMsg)
		},
		Now: func() time.Time { return time.Unix(0, 0) },
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	}
	return New(cfg, deps), h
}

func TestDownloadHappyPathSavesAndEmitsDownloaded(t *testing.T) {
	f := &fakeFetcher{html: map[string]string{
		"https://example.test/detalle?q=A==": detailHTMLWithPDF,
	}}
	w, h := newTestWorker(t, f, Config{DetailURLTemplate: "https://example.test/detalle?q=%s", PDFURLTemplate: "https://example.test/pdf?q=%s"})

	w.Download(context.Background(), messages.Download{QParam: "A==", IncludePDF: false})

	if len(h.downloaded) != 1 || h.downloaded[0].Document.QParam != "A==" {
		t.Fatalf("downloaded = %+v", h.downloaded)
	}
	if len(h.saved) != 1 {
		t.Fatalf("expected one SaveDocument, got %d", len(h.saved))
	}
	if h.saved[0].Document.Title != "Ley Federal de Trabajo" {
		t.Fatalf("title = %q", h.saved[0].Document.Title)
	}
	if len(h.errs) != 0 {
		t.Fatalf("unexpected errors: %v", h.errs)
	}
}

func TestDownloadFetchesReformPDFWhenIncluded(t *testing.T) {
	f := &fakeFetcher{
		html: map[string]string{"https://example.test/detalle?q=A==": detailHTMLWithPDF},
		pdf:  map[string][]byte{"https://example.test/pdf?q=Reforma001": []byte("%PDF-fake")},
	}
	pdfDir := t.TempDir()
	w, h := newTestWorker(t, f, Config{DetailURLTemplate: "https://example.test/detalle?q=%s", PDFURLTemplate: "https://example.test/pdf?q=%s", PDFDir: pdfDir})

	w.Download(context.Background(), messages.Download{QParam: "A==", IncludePDF: true})

	if len(h.processPDF) != 1 {
		t.Fatalf("expected one ProcessPDF dispatch, got %d", len(h.processPDF))
	}
	data, err := os.ReadFile(h.processPDF[0].PDFPath)
	if err != nil {
		t.Fatalf("staged pdf not readable: %v", err)
	}
	if string(data) != "%PDF-fake" {
		t.Fatalf("staged pdf contents = %q", data)
	}
}

func TestDownloadSkipsPDFFetchWhenReformHasNone(t *testing.T) {
	f := &fakeFetcher{html: map[string]string{"https://example.test/detalle?q=B==": detailHTMLNoReforms}}
	w, h := newTestWorker(t, f, Config{DetailURLTemplate: "https://example.test/detalle?q=%s", PDFURLTemplate: "https://example.test/pdf?q=%s"})

	w.Download(context.Background(), messages.Download{QParam: "B==", IncludePDF: true})

	if len(h.processPDF) != 0 {
		t.Fatalf("expected no ProcessPDF dispatch, got %d", len(h.processPDF))
	}
	if len(h.saved) != 1 {
		t.Fatalf("document should still be saved, got %d", len(h.saved))
	}
}

func TestDownloadPDFFetchFailureIsSwallowedNotFatal(t *testing.T) {
	f := &fakeFetcher{
		html:   map[string]string{"https://example.test/detalle?q=A==": detailHTMLWithPDF},
		pdfErr: map[string]error{"https://example.test/pdf?q=Reforma001": fmt.Errorf("boom")},
	}
	w, h := newTestWorker(t, f, Config{DetailURLTemplate: "https://example.test/detalle?q=%s", PDFURLTemplate: "https://example.test/pdf?q=%s"})

	w.Download(context.Background(), messages.Download{QParam: "A==", IncludePDF: true})

	if len(h.errs) != 0 {
		t.Fatalf("a swallowed pdf failure must not surface a WorkerErrorMsg, got %v", h.errs)
	}
	if len(h.processPDF) != 0 {
		t.Fatalf("expected no ProcessPDF dispatch, got %d", len(h.processPDF))
	}
	if len(h.saved) != 1 {
		t.Fatalf("the parent document must still be saved, got %d", len(h.saved))
	}
}

func TestDownloadDetailFetchNotFoundIsNonRecoverable(t *testing.T) {
	f := &fakeFetcher{htmlErr: map[string]error{"https://example.test/detalle?q=A==": fetch.ErrNotFound}}
	w, h := newTestWorker(t, f, Config{DetailURLTemplate: "https://example.test/detalle?q=%s", PDFURLTemplate: "https://example.test/pdf?q=%s"})

	w.Download(context.Background(), messages.Download{QParam: "A=="})

	if len(h.errs) != 1 {
		t.Fatalf("got %d error events, want 1", len(h.errs))
	}
	if h.errs[0].Recoverable {
		t.Fatal("a 404-equivalent must be non-recoverable")
	}
	if len(h.saved) != 0 {
		t.Fatal("no document should be saved on fetch failure")
	}
}

func TestDownloadParseFailureIsNonRecoverable(t *testing.T) {
	f := &fakeFetcher{html: map[string]string{"https://example.test/detalle?q=A==": `<html><body><div id="nope"></div></body></html>`}}
	w, h := newTestWorker(t, f, Config{DetailURLTemplate: "https://example.test/detalle?q=%s", PDFURLTemplate: "https://example.test/pdf?q=%s"})

	w.Download(context.Background(), messages.Download{QParam: "A=="})

	if len(h.errs) != 1 || h.errs[0].Recoverable {
		t.Fatalf("expected one non-recoverable error, got %+v", h.errs)
	}
}
