// Package embedder turns TextChunks into dense vectors. It lazily loads a
// local sentence-transformer model on first use and falls back to a
// deterministic pseudo-embedder of the same dimensionality when the model
// is unavailable, so the pipeline never blocks on a missing model file.
package embedder

import (
	"context"

	"github.com/scjn/scjn-pipeline/internal/domain"
)

// Dimension is the vector width every embedder in this package produces.
const Dimension = 384

// ModelName identifies the embedding model for provenance on each
// domain.Embedding record.
const ModelName = "sentence-transformers/all-MiniLM-L6-v2"

// Embedder vectorizes chunk content. Implementations must be safe for
// concurrent use; the pipeline shares one instance across worker calls.
type Embedder interface {
	Embed(ctx context.Context, chunks []domain.TextChunk) ([]domain.Embedding, error)
}

// New returns the real hugot-backed embedder if the model loads
// successfully, otherwise the deterministic pseudo-embedder — the
// Embedder Worker's documented fallback path (spec §4.8).
func New(modelPath string) Embedder {
	if real, err := newHugotEmbedder(modelPath); err == nil {
		return real
	}
	return NewPseudoEmbedder()
}
