package embedder

import (
	"context"
	"crypto/sha256"

	"github.com/scjn/scjn-pipeline/internal/domain"
)

// pseudoModelName identifies vectors produced without a real model, so
// downstream consumers can distinguish them from genuine embeddings.
const pseudoModelName = "deterministic-pseudo-embedder"

// PseudoEmbedder produces deterministic, hash-derived vectors of the same
// dimensionality as the real embedder. It exists so the pipeline keeps
// moving — and round-trips remain testable — when no model is available.
type PseudoEmbedder struct{}

// NewPseudoEmbedder returns the fallback embedder.
func NewPseudoEmbedder() *PseudoEmbedder { return &PseudoEmbedder{} }

var _ Embedder = (*PseudoEmbedder)(nil)

// Embed hashes each chunk's content into a Dimension-length unit-ish
// vector. Identical content always yields an identical vector.
func (PseudoEmbedder) Embed(ctx context.Context, chunks []domain.TextChunk) ([]domain.Embedding, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	out := make([]domain.Embedding, len(chunks))
	for i, c := range chunks {
		out[i] = domain.Embedding{
			ChunkID:   c.ID,
			Vector:    hashToVector(c.Content),
			ModelName: pseudoModelName,
		}
	}
	return out, nil
}

// hashToVector expands a SHA-256 digest of text into Dimension float32s by
// repeated re-hashing, each component normalized into [-1, 1].
func hashToVector(text string) []float32 {
	vec := make([]float32, Dimension)
	block := sha256.Sum256([]byte(text))
	for i := 0; i < Dimension; i++ {
		if i > 0 && i%len(block) == 0 {
			block = sha256.Sum256(block[:])
		}
		b := block[i%len(block)]
		vec[i] = (float32(b)/255.0)*2 - 1
	}
	return vec
}
