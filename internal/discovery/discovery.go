// Package discovery implements the Discovery Worker (spec §4.5): drives
// paginated search against the upstream SCJN listing and tells the
// Coordinator about every newly-seen document.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/scjn/scjn-pipeline/internal/domain"
	"github.com/scjn/scjn-pipeline/internal/fetch"
	"github.com/scjn/scjn-pipeline/internal/htmlparse"
	"github.com/scjn/scjn-pipeline/internal/messages"
	"github.com/scjn/scjn-pipeline/internal/ratelimit"
)

// DefaultMaxPages is the discovery page cap applied when neither the
// command nor the worker's Config overrides it.
const DefaultMaxPages = 100

// Config holds the Worker's fixed, deployment-level settings.
type Config struct {
	// SearchURL is the upstream search endpoint. Category/scope/status and
	// the page number are appended as query parameters
	// (categoria/ambito/estatus/pagina) per spec §6.
	SearchURL string
	MaxPages  int
}

// DefaultConfig returns the documented default.
func DefaultConfig() Config {
	return Config{MaxPages: DefaultMaxPages}
}

// Dependencies are the collaborators a Worker talks to. Emit* are
// fire-and-forget "tell"s, matching the mailbox model; in production they
// are wired to natsutil.Publish onto the corresponding subject.
type Dependencies struct {
	Fetch              fetch.Fetcher
	Limiter            ratelimit.Limiter
	EmitDiscovered     func(ctx context.Context, evt messages.DocumentDiscovered)
	EmitPageDiscovered func(ctx context.Context, evt messages.PageDiscovered)
	EmitError          func(ctx context.Context, errMsg messages.WorkerErrorMsg)
	Now                func() time.Time
	Logger             *slog.Logger
}

// Worker owns a process-local dedup set, separate from the Coordinator's
// discovered_q_params — the two sets serve different purposes: this one
// stops the Worker re-emitting the same item across overlapping pages
// within one discovery pass, the Coordinator's governs pipeline-wide
// dedup within a run (dedup across runs comes from Persistence's Exists
// check).
type Worker struct {
	cfg  Config
	deps Dependencies

	mu   sync.Mutex
	seen map[string]bool
}

// New builds a Worker.
func New(cfg Config, deps Dependencies) *Worker {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Worker{cfg: cfg, deps: deps, seen: make(map[string]bool)}
}

// Discover runs the full algorithm in spec §4.5: fetch page 1, emit new
// items, optionally walk further pages up to max_pages, then emit a
// summarizing PageDiscovered.
func (w *Worker) Discover(ctx context.Context, cmd messages.Discover) {
	maxPages := cmd.MaxPages
	if maxPages <= 0 {
		maxPages = w.cfg.MaxPages
	}

	page1, err := w.fetchPage(ctx, cmd, 1)
	if err != nil {
		w.emitFailure(ctx, cmd, err)
		return
	}

	itemsFound := w.emitNewItems(ctx, cmd, page1.Items)
	pagesFetched := 1

	if cmd.DiscoverAllPages {
		total := page1.TotalPages
		if total > maxPages {
			total = maxPages
		}
		for p := 2; p <= total; p++ {
			pageN, err := w.fetchPage(ctx, cmd, p)
			if err != nil {
				// Pagination failures on a later page never abort the run
				// (spec §4.5 step 5) — the page is skipped with a log.
				w.deps.Logger.Warn("discovery: skipping page after fetch/parse failure", "page", p, "error", err)
				continue
			}
			itemsFound += w.emitNewItems(ctx, cmd, pageN.Items)
			pagesFetched++
		}
	}

	w.deps.EmitPageDiscovered(ctx, messages.PageDiscovered{
		Envelope:     messages.Envelope{CorrelationID: cmd.CorrelationID, Timestamp: w.deps.Now()},
		PagesFetched: pagesFetched,
		ItemsFound:   itemsFound,
		CurrentPage:  pagesFetched,
		TotalPages:   page1.TotalPages,
		HasMorePages: pagesFetched < page1.TotalPages,
	})
}

func (w *Worker) fetchPage(ctx context.Context, cmd messages.Discover, page int) (htmlparse.SearchPage, error) {
	if err := w.deps.Limiter.Wait(ctx); err != nil {
		return htmlparse.SearchPage{}, err
	}
	raw, err := w.deps.Fetch.FetchHTML(ctx, w.buildURL(cmd, page))
	if err != nil {
		return htmlparse.SearchPage{}, err
	}
	return htmlparse.ParseSearchResults(raw)
}

func (w *Worker) buildURL(cmd messages.Discover, page int) string {
	u, err := url.Parse(w.cfg.SearchURL)
	if err != nil {
		return w.cfg.SearchURL
	}
	q := u.Query()
	if cmd.Category != "" {
		q.Set("categoria", cmd.Category)
	}
	if cmd.Scope != "" {
		q.Set("ambito", cmd.Scope)
	}
	if cmd.Status != "" {
		q.Set("estatus", cmd.Status)
	}
	q.Set("pagina", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// emitNewItems tells the Coordinator about every item not already in this
// Worker's local set, and returns how many were new.
func (w *Worker) emitNewItems(ctx context.Context, cmd messages.Discover, items []domain.SearchResultItem) int {
	count := 0
	for _, item := range items {
		w.mu.Lock()
		alreadySeen := w.seen[item.QParam]
		if !alreadySeen {
			w.seen[item.QParam] = true
		}
		w.mu.Unlock()
		if alreadySeen {
			continue
		}
		w.deps.EmitDiscovered(ctx, messages.DocumentDiscovered{
			Envelope: messages.Envelope{CorrelationID: cmd.CorrelationID, Timestamp: w.deps.Now()},
			Item:     item,
		})
		count++
	}
	return count
}

// emitFailure classifies err per spec §4.5: a parse failure is
// non-recoverable, everything else (network/timeout) is recoverable. The
// emitted error carries only the correlation id and the message: it names
// no q_param and holds no copy of the Discover command.
func (w *Worker) emitFailure(ctx context.Context, cmd messages.Discover, err error) {
	var pe *domain.ParseError
	recoverable := !errors.As(err, &pe) && fetch.IsRecoverable(err)
	w.deps.EmitError(ctx, messages.WorkerErrorMsg{
		Envelope:    messages.Envelope{CorrelationID: cmd.CorrelationID, Timestamp: w.deps.Now()},
		Recoverable: recoverable,
		Message:     err.Error(),
	})
}
