// Package checkpoint implements the Checkpoint Store (spec §4.11): a
// directory of one JSON file per session_id, scanned and indexed on
// startup, with writes serialized by a per-store lock and dispatched off
// the calling goroutine.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/scjn/scjn-pipeline/internal/domain"
)

// Store is a directory-backed checkpoint store.
type Store struct {
	mu  sync.Mutex
	dir string
	// index tracks which session_ids have a valid file on disk, refreshed
	// by the startup scan and every Save/Delete.
	index map[string]bool
}

// New scans dir for existing checkpoint files and returns a ready Store.
// Corrupted files (malformed JSON, missing session_id) are skipped
// silently, matching the startup-scan tolerance spec §4.11 requires.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: mkdir %s: %w", dir, err)
	}
	s := &Store{dir: dir, index: make(map[string]bool)}
	if err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("checkpoint: read dir %s: %w", s.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var cp domain.Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil || cp.SessionID == "" {
			continue
		}
		s.index[cp.SessionID] = true
	}
	return nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// Save writes the checkpoint to disk asynchronously: the write runs on a
// background goroutine so it never blocks the coordinator's event loop,
// and Save returns at once without waiting for it.
//
// The returned channel receives the write's eventual error (nil on
// success); callers that don't need to observe completion may discard it.
func (s *Store) Save(ctx context.Context, cp domain.Checkpoint) <-chan error {
	done := make(chan error, 1)
	if cp.SessionID == "" {
		done <- domain.ErrInvalidSessionID
		return done
	}

	data, err := json.Marshal(cp)
	if err != nil {
		done <- fmt.Errorf("checkpoint: marshal session %s: %w", cp.SessionID, err)
		return done
	}

	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := os.WriteFile(s.path(cp.SessionID), data, 0o644); err != nil {
			done <- fmt.Errorf("checkpoint: write session %s: %w", cp.SessionID, err)
			return
		}
		s.index[cp.SessionID] = true
		done <- nil
	}()
	return done
}

// Load reads the checkpoint for sessionID. It returns (nil, nil) if no
// checkpoint with that session_id is known.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	s.mu.Lock()
	known := s.index[sessionID]
	s.mu.Unlock()
	if !known {
		return nil, nil
	}

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read session %s: %w", sessionID, err)
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal session %s: %w", sessionID, err)
	}
	return &cp, nil
}

// List returns every known session_id.
func (s *Store) List(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	return ids
}

// Delete removes a session's checkpoint file and index entry. Deleting an
// unknown session_id is a no-op, not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.index[sessionID] {
		return nil
	}
	delete(s.index, sessionID)
	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete session %s: %w", sessionID, err)
	}
	return nil
}
