// Package vectorstore implements the Vector Store contract (spec §4.9):
// add/search/stats over chunk embeddings, with a Qdrant-backed primary
// implementation and an in-memory exact-search fallback satisfying the
// same interface.
package vectorstore

import "context"

// Record is one chunk's embedding as stored in the vector index.
type Record struct {
	ChunkID    string
	DocumentID string
	Vector     []float32
	Content    string
}

// SearchResult is one ranked hit. Similarity is 1/(1+L2 distance) —
// monotonic and bounded in (0, 1].
type SearchResult struct {
	ChunkID    string
	DocumentID string
	Similarity float64
}

// Stats summarizes the index's current contents.
type Stats struct {
	TotalChunks    int
	TotalDocuments int
}

// Store is the contract every Vector Store implementation satisfies.
type Store interface {
	Add(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, topK int, documentID string) ([]SearchResult, error)
	Stats(ctx context.Context) (Stats, error)
}

// overFetchFactor is how far past topK a document-filtered search
// over-fetches before filtering, per spec §4.9.
const overFetchFactor = 2
