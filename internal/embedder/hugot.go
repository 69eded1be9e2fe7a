package embedder

import (
	"context"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/scjn/scjn-pipeline/internal/domain"
)

// batchEmbedFunc vectorizes a batch of texts in one pipeline call.
type batchEmbedFunc func(texts []string) ([][]float32, error)

// hugotEmbedder wraps a lazily-initialized hugot feature-extraction
// pipeline. The session and pipeline are built once on first Embed call,
// matching the "loads model once, lazy" contract in spec §4.8.
type hugotEmbedder struct {
	modelPath string

	mu      sync.Mutex
	embed   batchEmbedFunc
	initErr error
}

func newHugotEmbedder(modelPath string) (*hugotEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("embedder: no model path configured")
	}
	return &hugotEmbedder{modelPath: modelPath}, nil
}

func (h *hugotEmbedder) ensureLoaded() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.embed != nil || h.initErr != nil {
		return h.initErr
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		h.initErr = fmt.Errorf("embedder: start hugot session: %w", err)
		return h.initErr
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: h.modelPath,
		Name:      ModelName,
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			h.initErr = fmt.Errorf("embedder: load model %s: %w (cleanup: %v)", h.modelPath, err, destroyErr)
		} else {
			h.initErr = fmt.Errorf("embedder: load model %s: %w", h.modelPath, err)
		}
		return h.initErr
	}

	h.embed = func(texts []string) ([][]float32, error) {
		result, err := sentencePipeline.RunPipeline(texts)
		if err != nil {
			return nil, fmt.Errorf("embedder: run pipeline: %w", err)
		}
		return result.Embeddings, nil
	}
	return nil
}

// Embed vectorizes chunk content off the cooperative scheduler — CPU-bound
// model inference must never block mailbox processing elsewhere (spec §5).
func (h *hugotEmbedder) Embed(ctx context.Context, chunks []domain.TextChunk) ([]domain.Embedding, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if err := h.ensureLoaded(); err != nil {
		// The model could not be loaded: fall back to the pseudo-embedder.
		return NewPseudoEmbedder().Embed(ctx, chunks)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := h.embed(texts)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Embedding, len(chunks))
	for i, c := range chunks {
		var vec []float32
		if i < len(vectors) {
			vec = vectors[i]
		}
		out[i] = domain.Embedding{ChunkID: c.ID, Vector: vec, ModelName: ModelName}
	}
	return out, nil
}
