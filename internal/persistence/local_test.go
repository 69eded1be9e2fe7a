package persistence

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestLocalAdapter(t *testing.T) *LocalAdapter {
	t.Helper()
	dir := t.TempDir()
	a, err := NewLocalAdapter(filepath.Join(dir, "documents"), filepath.Join(dir, "embeddings"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func TestLocalAdapterSaveThenExists(t *testing.T) {
	a := newTestLocalAdapter(t)
	ctx := context.Background()

	doc := Document{ID: "doc1", QParam: "A==", Title: "Ley de Prueba", Category: "LAW", Scope: "FEDERAL", Status: "IN_FORCE"}
	if err := a.Save(ctx, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exists, err := a.Exists(ctx, "A==")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected document to exist after save")
	}

	missing, err := a.Exists(ctx, "B==")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing {
		t.Fatal("expected unseen q_param to not exist")
	}
}

func TestLocalAdapterSaveIsIdempotentUpsert(t *testing.T) {
	a := newTestLocalAdapter(t)
	ctx := context.Background()

	_ = a.Save(ctx, Document{ID: "doc1", QParam: "A==", Title: "First Title"})
	_ = a.Save(ctx, Document{ID: "doc1", QParam: "A==", Title: "Updated Title"})

	exists, _ := a.Exists(ctx, "A==")
	if !exists {
		t.Fatal("expected document to still exist after re-save")
	}
}

func TestLocalAdapterRehydratesIndexOnRestart(t *testing.T) {
	dir := t.TempDir()
	docsDir := filepath.Join(dir, "documents")
	embedDir := filepath.Join(dir, "embeddings")

	first, err := NewLocalAdapter(docsDir, embedDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	if err := first.Save(ctx, Document{ID: "doc1", QParam: "A==", Title: "Ley"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := NewLocalAdapter(docsDir, embedDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exists, err := second.Exists(ctx, "A==")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected rehydrated adapter to know about previously saved q_param")
	}
}

func TestLocalAdapterSaveChunks(t *testing.T) {
	a := newTestLocalAdapter(t)
	ctx := context.Background()

	chunks := []ChunkRecord{
		{ChunkID: "doc1-chunk-0000", DocumentID: "doc1", Content: "alpha", Vector: []float32{0.1, 0.2}},
		{ChunkID: "doc1-chunk-0001", DocumentID: "doc1", Content: "beta", Vector: []float32{0.3, 0.4}},
	}
	if err := a.SaveChunks(ctx, "doc1", chunks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
