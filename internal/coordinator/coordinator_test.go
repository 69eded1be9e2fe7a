package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/scjn/scjn-pipeline/internal/domain"
	"github.com/scjn/scjn-pipeline/internal/messages"
)

// fakeWorkers records dispatched Download commands and lets the test
// script replies back into the Coordinator, standing in for the
// Scraper/Persistence/Checkpoint workers.
type fakeWorkers struct {
	mu        sync.Mutex
	existing  map[string]bool
	dispatched []messages.Download
	checkpoints []domain.Checkpoint
}

func newFakeWorkers() *fakeWorkers {
	return &fakeWorkers{existing: make(map[string]bool)}
}

func (f *fakeWorkers) exists(ctx context.Context, qParam string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[qParam], nil
}

func (f *fakeWorkers) dispatch(ctx context.Context, cmd messages.Download) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, cmd)
}

func (f *fakeWorkers) checkpoint(ctx context.Context, cp domain.Checkpoint) <-chan error {
	f.mu.Lock()
	f.checkpoints = append(f.checkpoints, cp)
	f.mu.Unlock()
	done := make(chan error, 1)
	done <- nil
	return done
}

func (f *fakeWorkers) dispatchedQParams() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.dispatched))
	for i, d := range f.dispatched {
		out[i] = d.QParam
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBackoff = 0
	return cfg
}

func newTestCoordinator(fw *fakeWorkers, cfg Config) *Coordinator {
	return New("sess1", cfg, Dependencies{
		Exists:     fw.exists,
		Dispatch:   fw.dispatch,
		Checkpoint: fw.checkpoint,
		Now:        func() time.Time { return time.Unix(0, 0) },
	})
}

func TestDedupDropsAlreadyDiscovered(t *testing.T) {
	fw := newFakeWorkers()
	c := newTestCoordinator(fw, testConfig())
	ctx := context.Background()

	evt := messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: "A=="}}
	if err := c.HandleDocumentDiscovered(ctx, evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.HandleDocumentDiscovered(ctx, evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fw.dispatchedQParams(); len(got) != 1 {
		t.Fatalf("expected exactly one dispatch for a duplicate discovery, got %v", got)
	}
}

func TestDedupDropsPreExistingDocuments(t *testing.T) {
	fw := newFakeWorkers()
	fw.existing["A=="] = true
	c := newTestCoordinator(fw, testConfig())
	ctx := context.Background()

	if err := c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: "A=="}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fw.dispatchedQParams(); len(got) != 0 {
		t.Fatalf("expected no dispatch for a pre-existing document, got %v", got)
	}
}

func TestBoundedConcurrencyCapsActiveDownloads(t *testing.T) {
	fw := newFakeWorkers()
	cfg := testConfig()
	cfg.MaxConcurrentDownloads = 2
	c := newTestCoordinator(fw, cfg)
	ctx := context.Background()

	for _, q := range []string{"A==", "B==", "C==", "D=="} {
		_ = c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: q}})
	}

	if got := fw.dispatchedQParams(); len(got) != 2 {
		t.Fatalf("expected only 2 dispatched (max_concurrent_downloads), got %v", got)
	}
	if c.State().ActiveDownloads != 2 {
		t.Fatalf("ActiveDownloads = %d, want 2", c.State().ActiveDownloads)
	}
}

func TestCompletionAfterDiscoveryAndDownloadsDrain(t *testing.T) {
	fw := newFakeWorkers()
	c := newTestCoordinator(fw, testConfig())
	ctx := context.Background()

	_ = c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: "A=="}})
	c.HandlePageDiscovered(ctx, true)

	if got := c.State().StateVariant; got == domain.StateCompleted {
		t.Fatalf("should not complete while a download is still active")
	}

	c.HandleDocumentDownloaded(ctx, messages.DocumentDownloaded{Document: domain.Document{QParam: "A=="}})

	if got := c.State().StateVariant; got != domain.StateCompleted {
		t.Fatalf("StateVariant = %s, want completed", got)
	}
}

func TestRetryRequeuesRecoverableErrorsUpToMaxRetries(t *testing.T) {
	fw := newFakeWorkers()
	cfg := testConfig()
	cfg.MaxRetries = 1
	c := newTestCoordinator(fw, cfg)
	ctx := context.Background()

	_ = c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: "A=="}})

	c.HandleWorkerError(ctx, messages.WorkerErrorMsg{QParam: "A==", Recoverable: true})
	waitForCondition(t, func() bool { return len(fw.dispatchedQParams()) == 2 })

	c.HandleWorkerError(ctx, messages.WorkerErrorMsg{QParam: "A==", Recoverable: true})
	waitForCondition(t, func() bool { return c.State().ErrorCount == 1 })

	if got := fw.dispatchedQParams(); len(got) != 2 {
		t.Fatalf("expected exactly one retry dispatch (max_retries=1), got %v", got)
	}
}

func TestNonRecoverableErrorNeverRetries(t *testing.T) {
	fw := newFakeWorkers()
	c := newTestCoordinator(fw, testConfig())
	ctx := context.Background()

	_ = c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: "A=="}})
	c.HandleWorkerError(ctx, messages.WorkerErrorMsg{QParam: "A==", Recoverable: false})

	if got := c.State().ErrorCount; got != 1 {
		t.Fatalf("ErrorCount = %d, want 1", got)
	}
	if got := fw.dispatchedQParams(); len(got) != 1 {
		t.Fatalf("expected no retry dispatch for a non-recoverable error, got %v", got)
	}
}

func TestPauseStopsPumpingAndSavesCheckpoint(t *testing.T) {
	fw := newFakeWorkers()
	cfg := testConfig()
	cfg.MaxConcurrentDownloads = 1
	c := newTestCoordinator(fw, cfg)
	ctx := context.Background()

	_ = c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: "A=="}})
	_ = c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: "B=="}})

	c.Pause(ctx)
	if got := c.State().StateVariant; got != domain.StatePaused {
		t.Fatalf("StateVariant = %s, want paused", got)
	}
	if len(fw.checkpoints) != 1 {
		t.Fatalf("expected a checkpoint save on pause, got %d", len(fw.checkpoints))
	}

	c.HandleDocumentDownloaded(ctx, messages.DocumentDownloaded{Document: domain.Document{QParam: "A=="}})
	if got := fw.dispatchedQParams(); len(got) != 1 {
		t.Fatalf("expected no new dispatch while paused, got %v", got)
	}
}

func TestResumeResumesPumping(t *testing.T) {
	fw := newFakeWorkers()
	cfg := testConfig()
	cfg.MaxConcurrentDownloads = 1
	c := newTestCoordinator(fw, cfg)
	ctx := context.Background()

	_ = c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: "A=="}})
	_ = c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: "B=="}})
	c.Pause(ctx)
	c.Resume(ctx)

	if got := fw.dispatchedQParams(); len(got) != 1 {
		t.Fatalf("resume should not exceed max_concurrent_downloads, got %v", got)
	}

	c.HandleDocumentDownloaded(ctx, messages.DocumentDownloaded{Document: domain.Document{QParam: "A=="}})
	if got := fw.dispatchedQParams(); len(got) != 2 {
		t.Fatalf("expected pump to dispatch the second item after capacity freed, got %v", got)
	}
}

func TestCheckpointIntervalTriggersSave(t *testing.T) {
	fw := newFakeWorkers()
	cfg := testConfig()
	cfg.CheckpointInterval = 2
	cfg.MaxConcurrentDownloads = 10
	c := newTestCoordinator(fw, cfg)
	ctx := context.Background()

	for _, q := range []string{"A==", "B=="} {
		_ = c.HandleDocumentDiscovered(ctx, messages.DocumentDiscovered{Item: domain.SearchResultItem{QParam: q}})
	}
	c.HandleDocumentDownloaded(ctx, messages.DocumentDownloaded{Document: domain.Document{QParam: "A=="}})
	if len(fw.checkpoints) != 0 {
		t.Fatalf("should not checkpoint before interval reached, got %d checkpoints", len(fw.checkpoints))
	}
	c.HandleDocumentDownloaded(ctx, messages.DocumentDownloaded{Document: domain.Document{QParam: "B=="}})
	if len(fw.checkpoints) != 1 {
		t.Fatalf("expected one checkpoint at the interval boundary, got %d", len(fw.checkpoints))
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
