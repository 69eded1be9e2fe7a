// Package bridge implements the Control/Status Bridge (spec §4.13):
// translates coarse external commands (start_search, stop_search,
// pause_search, resume_search, get_status, get_progress) into the
// internal Coordinator command set, and polls pipeline state at a
// configured interval to push progress to registered listeners.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scjn/scjn-pipeline/internal/domain"
	"github.com/scjn/scjn-pipeline/internal/messages"
)

// ErrSearchInProgress is returned by StartSearch when a search is already
// running on this Bridge instance (spec §4.13: "one search at a time per
// bridge instance").
var ErrSearchInProgress = errors.New("bridge: a search is already in progress")

// ErrNoSearchInProgress is returned by StopSearch/PauseSearch/ResumeSearch
// when there is nothing active to act on.
var ErrNoSearchInProgress = errors.New("bridge: no search in progress")

// SearchConfig is the coarse, external-facing shape of start_search's
// config argument.
type SearchConfig struct {
	Category         string
	Scope            string
	Status           string
	DiscoverAllPages bool
	MaxPages         int
}

// Status is the external-facing snapshot returned by GetStatus/GetProgress.
type Status struct {
	SessionID       string
	State           domain.RunState
	DiscoveredCount int
	DownloadedCount int
	PendingCount    int
	ActiveDownloads int
	ErrorCount      int
}

// Listener receives a Status every poll tick. Notify is invoked
// synchronously from the polling loop; a listener that wants to do slow
// work must hand it off itself (e.g. onto a channel) rather than block
// the loop. A Listener that panics is recovered so one bad listener
// cannot break the bridge for the others.
type Listener interface {
	Notify(Status)
}

// ListenerFunc adapts a plain function to a Listener.
type ListenerFunc func(Status)

func (f ListenerFunc) Notify(s Status) { f(s) }

// Config controls the Bridge's polling behavior.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig returns the documented default poll interval.
func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second}
}

// Dependencies are the Coordinator-facing operations the Bridge drives.
// They are plain functions rather than a concrete *coordinator.Coordinator
// reference so the Bridge is unit-testable without a real Coordinator, and
// so a future remote Coordinator (accessed over NATS request/reply) can be
// wired in without changing this package.
type Dependencies struct {
	StartDiscovery func(ctx context.Context, cmd messages.Discover)
	Pause          func(ctx context.Context)
	Resume         func(ctx context.Context)
	GetState       func() domain.PipelineState
	NewID          func() string
	Now            func() time.Time
	Logger         *slog.Logger
}

// Bridge is safe for concurrent use; StartSearch/StopSearch/PauseSearch/
// ResumeSearch serialize against each other and against the polling loop
// via mu.
type Bridge struct {
	cfg  Config
	deps Dependencies

	mu        sync.Mutex
	listeners []Listener
	sessionID string
	active    bool
	cancel    context.CancelFunc
	stopped   chan struct{}
}

// New builds a Bridge.
func New(cfg Config, deps Dependencies) *Bridge {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Bridge{cfg: cfg, deps: deps}
}

// AddListener registers a Listener to receive every poll tick's Status
// once a search is active.
func (b *Bridge) AddListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// StartSearch begins a new search, translating to Discover + starting the
// polling loop. Only one search may be in progress per Bridge instance.
func (b *Bridge) StartSearch(ctx context.Context, sessionID string, cfg SearchConfig) (string, error) {
	b.mu.Lock()
	if b.active {
		b.mu.Unlock()
		return "", ErrSearchInProgress
	}
	if sessionID == "" {
		sessionID = b.deps.NewID()
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	b.sessionID = sessionID
	b.active = true
	b.cancel = cancel
	b.stopped = make(chan struct{})
	b.mu.Unlock()

	b.deps.StartDiscovery(ctx, messages.Discover{
		Envelope:         messages.Envelope{CorrelationID: sessionID, Timestamp: b.deps.Now()},
		Category:         cfg.Category,
		Scope:            cfg.Scope,
		Status:           cfg.Status,
		DiscoverAllPages: cfg.DiscoverAllPages,
		MaxPages:         cfg.MaxPages,
	})

	go b.pollLoop(pollCtx)

	return sessionID, nil
}

// StopSearch ends the active search for good: pauses the Coordinator
// (saving a checkpoint) and stops the polling loop.
func (b *Bridge) StopSearch(ctx context.Context) error {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return ErrNoSearchInProgress
	}
	cancel := b.cancel
	stopped := b.stopped
	b.active = false
	b.mu.Unlock()

	b.deps.Pause(ctx)
	cancel()
	<-stopped
	return nil
}

// PauseSearch pauses the active search without ending the polling loop;
// the caller may later ResumeSearch.
func (b *Bridge) PauseSearch(ctx context.Context) error {
	b.mu.Lock()
	active := b.active
	b.mu.Unlock()
	if !active {
		return ErrNoSearchInProgress
	}
	b.deps.Pause(ctx)
	return nil
}

// ResumeSearch resumes a paused search.
func (b *Bridge) ResumeSearch(ctx context.Context) error {
	b.mu.Lock()
	active := b.active
	b.mu.Unlock()
	if !active {
		return ErrNoSearchInProgress
	}
	b.deps.Resume(ctx)
	return nil
}

// GetStatus and GetProgress are the same coarse snapshot under spec
// §4.13; both map the Coordinator's PipelineState onto the external Status
// shape.
func (b *Bridge) GetStatus() (Status, error) {
	return b.status()
}

func (b *Bridge) GetProgress() (Status, error) {
	return b.status()
}

func (b *Bridge) status() (Status, error) {
	b.mu.Lock()
	sessionID := b.sessionID
	b.mu.Unlock()
	if sessionID == "" {
		return Status{}, ErrNoSearchInProgress
	}
	return toStatus(sessionID, b.deps.GetState()), nil
}

func toStatus(sessionID string, state domain.PipelineState) Status {
	return Status{
		SessionID:       sessionID,
		State:           state.StateVariant,
		DiscoveredCount: len(state.DiscoveredQParams),
		DownloadedCount: len(state.DownloadedQParams),
		PendingCount:    len(state.PendingQueue),
		ActiveDownloads: state.ActiveDownloads,
		ErrorCount:      state.ErrorCount,
	}
}

// pollLoop ticks at cfg.PollInterval, notifying every registered listener
// with the current Status, until ctx is cancelled by StopSearch. Grounded
// on cmd/ingest's ticker-driven scan loop.
func (b *Bridge) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()
	defer close(b.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.notifyListeners()
		}
	}
}

func (b *Bridge) notifyListeners() {
	status, err := b.status()
	if err != nil {
		return
	}
	b.mu.Lock()
	listeners := append([]Listener(nil), b.listeners...)
	b.mu.Unlock()
	for _, l := range listeners {
		b.notifyOne(l, status)
	}
}

// notifyOne recovers from a panicking listener so one bad callback never
// breaks polling for the others (spec §4.13: "listener exceptions must
// not break the bridge").
func (b *Bridge) notifyOne(l Listener, status Status) {
	defer func() {
		if r := recover(); r != nil {
			b.deps.Logger.Error("bridge: listener panicked", "recover", r)
		}
	}()
	l.Notify(status)
}
