// Package coordinator implements the Coordinator (spec §4.12): the
// PipelineState-owning state machine that drives discovery, bounded
// concurrency, dedup, retry/backoff, checkpointing, and pause/resume.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/scjn/scjn-pipeline/internal/domain"
	"github.com/scjn/scjn-pipeline/internal/messages"
)

// Config holds the Coordinator's tunable policies, all with the spec's
// documented defaults.
type Config struct {
	MaxConcurrentDownloads int
	MaxRetries             int
	CheckpointInterval     int
	RetryBackoff           time.Duration
}

// DefaultConfig returns the spec-documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentDownloads: 3,
		MaxRetries:             3,
		CheckpointInterval:     10,
		RetryBackoff:           2 * time.Second,
	}
}

// Dependencies are the other workers/adapters the Coordinator talks to.
// Dispatch is fire-and-forget: the Coordinator does not wait for it, and
// the corresponding DocumentDownloaded/WorkerErrorMsg arrives later via
// HandleDocumentDownloaded/HandleWorkerError.
type Dependencies struct {
	Exists   func(ctx context.Context, qParam string) (bool, error)
	Dispatch func(ctx context.Context, cmd messages.Download)
	Checkpoint func(ctx context.Context, cp domain.Checkpoint) <-chan error
	// Now returns the current time; overridable in tests for
	// deterministic backoff/stall-detection assertions.
	Now func() time.Time
}

// Coordinator owns the PipelineState and the policies that mutate it.
type Coordinator struct {
	mu    sync.Mutex
	state *domain.PipelineState
	cfg   Config
	deps  Dependencies

	sessionID           string
	downloadsSincePoint int
	discoveryComplete   bool
	lastActivity        time.Time
	lastProcessedQParam string
}

// New builds a Coordinator in the idle state.
func New(sessionID string, cfg Config, deps Dependencies) *Coordinator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Coordinator{
		state:        domain.NewPipelineState(),
		cfg:          cfg,
		deps:         deps,
		sessionID:    sessionID,
		lastActivity: deps.Now(),
	}
}

// State returns a snapshot of the current PipelineState. The returned
// value is a copy of the scalar fields; slices/maps are shared read-only
// snapshots and must not be mutated by callers.
func (c *Coordinator) State() domain.PipelineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.state
}

// LastActivity reports when the Coordinator last made forward progress.
func (c *Coordinator) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Coordinator) touch() {
	c.lastActivity = c.deps.Now()
}

// StartDiscovery transitions idle -> discovering. Calling it from any
// other state is a no-op.
func (c *Coordinator) StartDiscovery(ctx context.Context, correlationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.StateVariant != domain.StateIdle {
		return
	}
	c.state.StateVariant = domain.StateDiscovering
	c.state.CurrentCorrelationID = correlationID
	c.touch()
}

// HandleDocumentDiscovered applies spec §4.12's dedup policy: drop if
// already discovered; otherwise ask Persistence whether it exists, and
// drop (without enqueuing) if so, else enqueue into pending_queue.
func (c *Coordinator) HandleDocumentDiscovered(ctx context.Context, evt messages.DocumentDiscovered) error {
	qParam := evt.Item.QParam

	c.mu.Lock()
	if c.state.DiscoveredQParams[qParam] {
		c.mu.Unlock()
		return nil
	}
	c.state.DiscoveredQParams[qParam] = true
	c.mu.Unlock()

	exists, err := c.deps.Exists(ctx, qParam)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	c.mu.Lock()
	c.state.PendingQueue = append(c.state.PendingQueue, qParam)
	c.touch()
	c.mu.Unlock()

	c.pump(ctx)
	return nil
}

// HandlePageDiscovered marks discovery as finished once the Discovery
// Worker reports its last page. It does not by itself complete the run —
// completion also requires the download/retry queues to drain.
func (c *Coordinator) HandlePageDiscovered(ctx context.Context, allPagesFetched bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !allPagesFetched {
		return
	}
	c.discoveryComplete = true
	c.touch()
	c.maybeComplete()
}

// pump dispatches Download commands while capacity and pending work
// remain, per spec §4.12's bounded-concurrency policy. Retries take
// priority over fresh discoveries so a backlog of failures doesn't starve
// forever behind new work.
func (c *Coordinator) pump(ctx context.Context) {
	for {
		c.mu.Lock()
		if c.state.StateVariant == domain.StatePaused || c.state.StateVariant == domain.StateError {
			c.mu.Unlock()
			return
		}
		if c.state.ActiveDownloads >= c.cfg.MaxConcurrentDownloads {
			c.mu.Unlock()
			return
		}

		var qParam string
		switch {
		case len(c.state.RetryQueue) > 0:
			qParam, c.state.RetryQueue = c.state.RetryQueue[0], c.state.RetryQueue[1:]
		case len(c.state.PendingQueue) > 0:
			qParam, c.state.PendingQueue = c.state.PendingQueue[0], c.state.PendingQueue[1:]
		default:
			c.mu.Unlock()
			return
		}

		c.state.ActiveDownloads++
		if c.state.StateVariant == domain.StateDiscovering || c.state.StateVariant == domain.StateIdle {
			c.state.StateVariant = domain.StateDownloading
		}
		correlationID := c.state.CurrentCorrelationID
		c.touch()
		c.mu.Unlock()

		c.deps.Dispatch(ctx, messages.Download{
			Envelope:   messages.Envelope{CorrelationID: correlationID, Timestamp: c.deps.Now()},
			QParam:     qParam,
			IncludePDF: true,
		})
	}
}

// HandleDocumentDownloaded decrements active_downloads, marks the
// document as downloaded, checkpoints every CheckpointInterval downloads,
// and re-pumps the queue.
func (c *Coordinator) HandleDocumentDownloaded(ctx context.Context, evt messages.DocumentDownloaded) {
	c.mu.Lock()
	if c.state.ActiveDownloads > 0 {
		c.state.ActiveDownloads--
	}
	c.state.DownloadedQParams[evt.Document.QParam] = true
	c.lastProcessedQParam = evt.Document.QParam
	c.downloadsSincePoint++
	c.touch()

	shouldCheckpoint := c.downloadsSincePoint >= c.cfg.CheckpointInterval
	if shouldCheckpoint {
		c.downloadsSincePoint = 0
	}
	c.mu.Unlock()

	if shouldCheckpoint {
		c.checkpoint(ctx)
	}

	c.mu.Lock()
	c.maybeComplete()
	c.mu.Unlock()

	c.pump(ctx)
}

// HandleWorkerError applies spec §4.12's retry policy: recoverable errors
// with an original Download command are retried up to MaxRetries, after a
// documented backoff; everything else (non-recoverable, or retries
// exhausted) is a permanent failure that increments error_count.
func (c *Coordinator) HandleWorkerError(ctx context.Context, errMsg messages.WorkerErrorMsg) {
	c.mu.Lock()
	if c.state.ActiveDownloads > 0 {
		c.state.ActiveDownloads--
	}
	c.touch()

	if !errMsg.Recoverable || errMsg.QParam == "" {
		c.state.ErrorCount++
		c.mu.Unlock()
		c.completeAndPump(ctx)
		return
	}

	c.state.RetryCounts[errMsg.QParam]++
	count := c.state.RetryCounts[errMsg.QParam]
	if count > c.cfg.MaxRetries {
		c.state.ErrorCount++
		c.mu.Unlock()
		c.completeAndPump(ctx)
		return
	}
	qParam := errMsg.QParam
	c.mu.Unlock()

	backoff := c.cfg.RetryBackoff
	go func() {
		if backoff > 0 {
			time.Sleep(backoff)
		}
		c.mu.Lock()
		c.state.RetryQueue = append(c.state.RetryQueue, qParam)
		c.touch()
		c.mu.Unlock()
		c.pump(ctx)
	}()
}

// completeAndPump re-checks completion and pumps without holding
// the lock across the pump call (pump re-acquires it internally).
func (c *Coordinator) completeAndPump(ctx context.Context) {
	c.mu.Lock()
	c.maybeComplete()
	c.mu.Unlock()
	c.pump(ctx)
}

// maybeComplete transitions discovering/downloading -> completed once
// discovery has finished and both queues and active downloads are
// drained. Caller must hold c.mu.
func (c *Coordinator) maybeComplete() {
	if !c.discoveryComplete {
		return
	}
	if c.state.StateVariant == domain.StatePaused || c.state.StateVariant == domain.StateError {
		return
	}
	if len(c.state.PendingQueue) == 0 && len(c.state.RetryQueue) == 0 && c.state.ActiveDownloads == 0 {
		c.state.StateVariant = domain.StateCompleted
	}
}

// Pause transitions to paused from any active state, saves a checkpoint,
// and stops pumping; in-flight downloads drain naturally (their
// HandleDocumentDownloaded/HandleWorkerError calls still decrement
// active_downloads, but pump() is a no-op while paused).
func (c *Coordinator) Pause(ctx context.Context) {
	c.mu.Lock()
	if c.state.StateVariant == domain.StateCompleted || c.state.StateVariant == domain.StateError {
		c.mu.Unlock()
		return
	}
	c.state.StateVariant = domain.StatePaused
	c.touch()
	c.mu.Unlock()

	c.checkpoint(ctx)
}

// Resume transitions back out of paused and resumes pumping.
func (c *Coordinator) Resume(ctx context.Context) {
	c.mu.Lock()
	if c.state.StateVariant != domain.StatePaused {
		c.mu.Unlock()
		return
	}
	if len(c.state.PendingQueue) > 0 || len(c.state.RetryQueue) > 0 {
		c.state.StateVariant = domain.StateDownloading
	} else {
		c.state.StateVariant = domain.StateDiscovering
	}
	c.touch()
	c.mu.Unlock()

	c.pump(ctx)
}

// RehydrateFromCheckpoint restores pending work from a previously saved
// checkpoint, used by Resume(session_id) at startup.
func (c *Coordinator) RehydrateFromCheckpoint(cp *domain.Checkpoint) {
	if cp == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range cp.FailedQParams {
		c.state.RetryQueue = append(c.state.RetryQueue, q)
	}
}

func (c *Coordinator) checkpoint(ctx context.Context) {
	c.mu.Lock()
	cp := domain.Checkpoint{
		SessionID:           c.sessionID,
		LastProcessedQParam: c.lastProcessedQParam,
		ProcessedCount:      len(c.state.DownloadedQParams),
		FailedQParams:       append([]string(nil), c.state.RetryQueue...),
		CreatedAt:           c.deps.Now(),
	}
	c.mu.Unlock()

	if c.deps.Checkpoint != nil {
		<-c.deps.Checkpoint(ctx, cp)
	}
}
