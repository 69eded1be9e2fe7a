// Command scjn-pipeline discovers, scrapes, extracts, embeds, and indexes
// SCJN legislative documents and their reforms. It exposes three
// subcommands: discover (run a new session), resume (continue a
// checkpointed session), and status (list or inspect saved checkpoints).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/scjn/scjn-pipeline/internal/checkpoint"
	"github.com/scjn/scjn-pipeline/internal/domain"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: scjn-pipeline <discover|resume|status> [flags]")
		os.Exit(1)
	}

	log := slog.Default()
	var err error
	switch os.Args[1] {
	case "discover":
		err = runDiscover(log, os.Args[2:])
	case "resume":
		err = runResume(log, os.Args[2:])
	case "status":
		err = runStatus(log, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q: want discover, resume, or status\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		log.Error("scjn-pipeline failed", "error", err)
		os.Exit(1)
	}
}

// runDiscover starts a fresh session and drives it to completion or
// interruption, printing progress ticks and a final summary.
func runDiscover(log *slog.Logger, args []string) error {
	f, err := parseDiscoverFlags(args)
	if err != nil {
		return err
	}
	if err := ensureDir(f.outputDir); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if err := ensureDir(f.checkpointDir); err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}

	sessionID := uuid.NewString()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, sessionID, f, log)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer p.Close()

	p.bridge.AddListener(progressListener(log))

	log.Info("starting discovery", "session_id", sessionID, "category", f.category, "all_pages", f.allPages)
	if _, err := p.bridge.StartSearch(ctx, sessionID, searchConfigFrom(f)); err != nil {
		return fmt.Errorf("start search: %w", err)
	}

	return runUntilDoneOrInterrupted(ctx, p, log, f.maxResults)
}

// runResume reconnects to a checkpointed session and continues pumping it.
func runResume(log *slog.Logger, args []string) error {
	rf, err := parseResumeFlags(args)
	if err != nil {
		return err
	}
	if err := ensureDir(rf.outputDir); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if err := ensureDir(rf.checkpointDir); err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, rf.sessionID, rf.discoverFlags, log)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer p.Close()

	cp, err := p.checkpoints.Load(ctx, rf.sessionID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint found for session %q", rf.sessionID)
	}
	p.coordinator.RehydrateFromCheckpoint(cp)
	p.coordinator.Resume(ctx)

	p.bridge.AddListener(progressListener(log))
	log.Info("resumed session", "session_id", rf.sessionID, "processed_count", cp.ProcessedCount)

	return runUntilDoneOrInterrupted(ctx, p, log, rf.maxResults)
}

// runStatus lists every checkpoint found in the checkpoint directory.
func runStatus(log *slog.Logger, args []string) error {
	sf, err := parseStatusFlags(args)
	if err != nil {
		return err
	}

	cpStore, err := checkpoint.New(sf.checkpointDir)
	if err != nil {
		return fmt.Errorf("checkpoint store: %w", err)
	}

	ctx := context.Background()
	sessions := cpStore.List(ctx)
	if len(sessions) == 0 {
		fmt.Println("no checkpointed sessions found")
		return nil
	}
	for _, sessionID := range sessions {
		cp, err := cpStore.Load(ctx, sessionID)
		if err != nil || cp == nil {
			fmt.Printf("%s: unreadable checkpoint\n", sessionID)
			continue
		}
		fmt.Printf("%s: processed=%d failed=%d last_q_param=%s created_at=%s\n",
			cp.SessionID, cp.ProcessedCount, len(cp.FailedQParams), cp.LastProcessedQParam,
			cp.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// runUntilDoneOrInterrupted blocks until the run reaches domain.StateCompleted,
// discovers maxResults documents (0 = unlimited), or ctx is cancelled
// (interrupt/SIGTERM), printing a final summary either way.
func runUntilDoneOrInterrupted(ctx context.Context, p *pipeline, log *slog.Logger, maxResults int) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted, pausing and checkpointing")
			p.coordinator.Pause(context.Background())
			printSummary(p.coordinator.State())
			return nil
		case <-ticker.C:
			state := p.coordinator.State()
			if state.StateVariant == domain.StateCompleted {
				printSummary(state)
				return nil
			}
			if maxResults > 0 && len(state.DiscoveredQParams) >= maxResults {
				log.Info("max-results reached, pausing and checkpointing", "max_results", maxResults)
				p.coordinator.Pause(context.Background())
				printSummary(p.coordinator.State())
				return nil
			}
		}
	}
}

func printSummary(state domain.PipelineState) {
	fmt.Printf("discovered=%d downloaded=%d pending=%d active_downloads=%d errors=%d state=%s\n",
		len(state.DiscoveredQParams), len(state.DownloadedQParams), len(state.PendingQueue),
		state.ActiveDownloads, state.ErrorCount, state.StateVariant)
}
