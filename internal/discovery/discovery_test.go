package discovery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/scjn/scjn-pipeline/internal/messages"
	"github.com/scjn/scjn-pipeline/internal/ratelimit"
)

// fakeFetcher serves one canned HTML page per "pagina" query value and
// records every URL it was asked to fetch.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
	failOn  map[string]error
}

func (f *fakeFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()
	for pagina, err := range f.failOn {
		if containsQuery(url, "pagina="+pagina) {
			return "", err
		}
	}
	for pagina, html := range f.pages {
		if containsQuery(url, "pagina="+pagina) {
			return html, nil
		}
	}
	return "", fmt.Errorf("fakeFetcher: no page configured for %s", url)
}

func (f *fakeFetcher) FetchPDF(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	return nil, fmt.Errorf("not used in discovery tests")
}

func containsQuery(url, fragment string) bool {
	for i := 0; i+len(fragment) <= len(url); i++ {
		if url[i:i+len(fragment)] == fragment {
			return true
		}
	}
	return false
}

func page(items string, pageNum, total int) string {
	return fmt.Sprintf(`<html><body>
<div id="gridResultados">
<table>
%s
<td class="dxpPagerTotal">P&aacute;gina %d de %d</td>
</table>
</div>
</body></html>`, items, pageNum, total)
}

func row(qParam, title string) string {
	return fmt.Sprintf(`<tr class="dxgvDataRow">
<td><a href="wfOrdenamientoDetalle.aspx?q=%s">%s</a></td>
<td>01/02/2020</td><td>15/01/2020</td><td>Vigente</td><td>Ley</td><td>Federal</td>
</tr>`, qParam, title)
}

type harness struct {
	discovered []messages.DocumentDiscovered
	pageEvents []messages.PageDiscovered
	errs       []messages.WorkerErrorMsg
}

func newTestWorker(f *fakeFetcher, cfg Config) (*Worker, *harness) {
	h := &harness{}
	deps := Dependencies{
		Fetch:   f,
		Limiter: ratelimit.NoOp{},
		EmitDiscovered: func(ctx context.Context, evt messages.DocumentDiscovered) {
			h.discovered = append(h.discovered, evt)
		},
		EmitPageDiscovered: func(ctx context.Context, evt messages.PageDiscovered) {
			h.pageEvents = append(h.pageEvents, evt)
		},
		EmitError: func(ctx context.Context, errMsg messages.WorkerErrorMsg) {
			h.errs = append(h.errs, errMsg)
		},
		Now: func() time.Time { return time.Unix(0, 0) },
	}
	return New(cfg, deps), h
}

func TestDiscoverSinglePageEmitsEachNewItem(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"1": page(row("AAA", "Ley Uno")+row("BBB", "Ley Dos"), 1, 1),
	}}
	w, h := newTestWorker(f, DefaultConfig())

	w.Discover(context.Background(), messages.Discover{})

	if len(h.discovered) != 2 {
		t.Fatalf("got %d discovered events, want 2", len(h.discovered))
	}
	if len(h.pageEvents) != 1 || h.pageEvents[0].PagesFetched != 1 || h.pageEvents[0].ItemsFound != 2 {
		t.Fatalf("unexpected page event: %+v", h.pageEvents)
	}
	evt := h.pageEvents[0]
	if evt.CurrentPage != 1 || evt.TotalPages != 1 || evt.HasMorePages {
		t.Fatalf("unexpected pagination fields: %+v", evt)
	}
}

func TestDiscoverAllPagesWalksUntilTotal(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"1": page(row("AAA", "Ley Uno"), 1, 3),
		"2": page(row("BBB", "Ley Dos"), 2, 3),
		"3": page(row("CCC", "Ley Tres"), 3, 3),
	}}
	w, h := newTestWorker(f, DefaultConfig())

	w.Discover(context.Background(), messages.Discover{DiscoverAllPages: true})

	if len(h.discovered) != 3 {
		t.Fatalf("got %d discovered events, want 3", len(h.discovered))
	}
	if h.pageEvents[0].PagesFetched != 3 {
		t.Fatalf("PagesFetched = %d, want 3", h.pageEvents[0].PagesFetched)
	}
	if evt := h.pageEvents[0]; evt.CurrentPage != 3 || evt.TotalPages != 3 || evt.HasMorePages {
		t.Fatalf("unexpected pagination fields: %+v", evt)
	}
}

func TestDiscoverRespectsMaxPagesCap(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"1": page(row("AAA", "Ley Uno"), 1, 5),
		"2": page(row("BBB", "Ley Dos"), 2, 5),
	}}
	cfg := DefaultConfig()
	cfg.MaxPages = 2
	w, h := newTestWorker(f, cfg)

	w.Discover(context.Background(), messages.Discover{DiscoverAllPages: true})

	if h.pageEvents[0].PagesFetched != 2 {
		t.Fatalf("PagesFetched = %d, want 2 (capped)", h.pageEvents[0].PagesFetched)
	}
	if evt := h.pageEvents[0]; evt.CurrentPage != 2 || evt.TotalPages != 5 || !evt.HasMorePages {
		t.Fatalf("unexpected pagination fields: %+v", evt)
	}
}

func TestDiscoverDedupsWithinOneRun(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"1": page(row("AAA", "Ley Uno"), 1, 2),
		"2": page(row("AAA", "Ley Uno")+row("BBB", "Ley Dos"), 2, 2),
	}}
	w, h := newTestWorker(f, DefaultConfig())

	w.Discover(context.Background(), messages.Discover{DiscoverAllPages: true})

	if len(h.discovered) != 2 {
		t.Fatalf("got %d discovered events, want 2 (AAA deduped on page 2)", len(h.discovered))
	}
}

func TestDiscoverPage1ParseFailureIsNonRecoverable(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"1": `<html><body><div id="otraCosa"></div></body></html>`,
	}}
	w, h := newTestWorker(f, DefaultConfig())

	w.Discover(context.Background(), messages.Discover{})

	if len(h.errs) != 1 {
		t.Fatalf("got %d error events, want 1", len(h.errs))
	}
	if h.errs[0].Recoverable {
		t.Fatal("a missing grid is a parse error and must be non-recoverable")
	}
	if len(h.pageEvents) != 0 {
		t.Fatal("no PageDiscovered should be emitted when page 1 fails")
	}
}

func TestDiscoverLaterPageFailureIsSkippedNotFatal(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			"1": page(row("AAA", "Ley Uno"), 1, 2),
		},
		failOn: map[string]error{"2": fmt.Errorf("boom")},
	}
	w, h := newTestWorker(f, DefaultConfig())

	w.Discover(context.Background(), messages.Discover{DiscoverAllPages: true})

	if len(h.errs) != 0 {
		t.Fatalf("a later-page failure must not surface as a WorkerErrorMsg, got %v", h.errs)
	}
	if len(h.discovered) != 1 {
		t.Fatalf("got %d discovered events, want 1 (only page 1's item)", len(h.discovered))
	}
	if h.pageEvents[0].PagesFetched != 1 {
		t.Fatalf("PagesFetched = %d, want 1 (page 2 skipped)", h.pageEvents[0].PagesFetched)
	}
}
