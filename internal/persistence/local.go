package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalAdapter persists documents and chunk embeddings as one JSON file
// per entity under documentsDir/embeddingsDir. It serializes all writes
// with its own lock and rehydrates its q_param index from disk on
// construction so exists() survives restarts.
type LocalAdapter struct {
	mu            sync.Mutex
	documentsDir  string
	embeddingsDir string
	qParamIndex   map[string]string // q_param -> document_id
}

var _ Adapter = (*LocalAdapter)(nil)

// NewLocalAdapter creates the documents/embeddings directories if missing
// and rehydrates the q_param index from any documents already on disk.
func NewLocalAdapter(documentsDir, embeddingsDir string) (*LocalAdapter, error) {
	if err := os.MkdirAll(documentsDir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: mkdir documents dir: %w", err)
	}
	if err := os.MkdirAll(embeddingsDir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: mkdir embeddings dir: %w", err)
	}

	a := &LocalAdapter{
		documentsDir:  documentsDir,
		embeddingsDir: embeddingsDir,
		qParamIndex:   make(map[string]string),
	}
	if err := a.rehydrate(); err != nil {
		return nil, err
	}
	return a, nil
}

// rehydrate scans documentsDir and rebuilds the q_param -> document_id
// index. Malformed files are skipped silently, matching the Checkpoint
// Store's startup-scan tolerance elsewhere in the pipeline.
func (a *LocalAdapter) rehydrate() error {
	entries, err := os.ReadDir(a.documentsDir)
	if err != nil {
		return fmt.Errorf("persistence: read documents dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.documentsDir, entry.Name()))
		if err != nil {
			continue
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil || doc.QParam == "" {
			continue
		}
		a.qParamIndex[doc.QParam] = doc.ID
	}
	return nil
}

func (a *LocalAdapter) documentPath(id string) string {
	return filepath.Join(a.documentsDir, id+".json")
}

func (a *LocalAdapter) chunkPath(chunkID string) string {
	return filepath.Join(a.embeddingsDir, chunkID+".json")
}

// Save upserts the document's JSON file and refreshes the in-memory index.
func (a *LocalAdapter) Save(ctx context.Context, doc Document) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("persistence: marshal document %s: %w", doc.ID, err)
	}
	if err := os.WriteFile(a.documentPath(doc.ID), data, 0o644); err != nil {
		return fmt.Errorf("persistence: write document %s: %w", doc.ID, err)
	}
	// A re-save of the same q_param under a new ID replaces the old file.
	if oldID, ok := a.qParamIndex[doc.QParam]; ok && oldID != doc.ID {
		_ = os.Remove(a.documentPath(oldID))
	}
	a.qParamIndex[doc.QParam] = doc.ID
	return nil
}

// Exists consults the in-memory q_param index.
func (a *LocalAdapter) Exists(ctx context.Context, qParam string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.qParamIndex[qParam]
	return ok, nil
}

// SaveChunks batch-upserts one JSON file per chunk, keyed by chunk_id.
func (a *LocalAdapter) SaveChunks(ctx context.Context, documentID string, chunks []ChunkRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, c := range chunks {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("persistence: marshal chunk %s: %w", c.ChunkID, err)
		}
		if err := os.WriteFile(a.chunkPath(c.ChunkID), data, 0o644); err != nil {
			return fmt.Errorf("persistence: write chunk %s: %w", c.ChunkID, err)
		}
	}
	return nil
}
