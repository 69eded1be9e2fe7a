package embedder

import (
	"context"
	"testing"

	"github.com/scjn/scjn-pipeline/internal/domain"
)

func TestPseudoEmbedderDeterministic(t *testing.T) {
	e := NewPseudoEmbedder()
	chunks := []domain.TextChunk{{ID: "c1", Content: "hola mundo"}}

	a, err := e.Embed(context.Background(), chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.Embed(context.Background(), chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a[0].Vector) != Dimension {
		t.Fatalf("vector dim = %d, want %d", len(a[0].Vector), Dimension)
	}
	for i := range a[0].Vector {
		if a[0].Vector[i] != b[0].Vector[i] {
			t.Fatalf("pseudo-embedder not deterministic at index %d", i)
		}
	}
}

func TestPseudoEmbedderEmptyInput(t *testing.T) {
	e := NewPseudoEmbedder()
	out, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no embeddings for empty input, got %d", len(out))
	}
}

func TestPseudoEmbedderDistinctContent(t *testing.T) {
	e := NewPseudoEmbedder()
	chunks := []domain.TextChunk{{ID: "c1", Content: "alpha"}, {ID: "c2", Content: "beta"}}
	out, err := e.Embed(context.Background(), chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	same := true
	for i := range out[0].Vector {
		if out[0].Vector[i] != out[1].Vector[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("distinct content should not produce identical vectors")
	}
}
