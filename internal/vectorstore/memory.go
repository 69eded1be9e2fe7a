package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an exact-search fallback satisfying the Store contract
// when no Qdrant instance is configured — used in tests and local runs.
// All mutation goes through its own mutex, matching spec §5's rule that
// the index is only ever touched through its own mailbox.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record // chunk_id -> record
	byDoc   map[string]map[string]bool // document_id -> set<chunk_id>
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		byDoc:   make(map[string]map[string]bool),
	}
}

var _ Store = (*MemoryStore)(nil)

// Add inserts or replaces records by ChunkID.
func (m *MemoryStore) Add(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ChunkID] = r
		if m.byDoc[r.DocumentID] == nil {
			m.byDoc[r.DocumentID] = make(map[string]bool)
		}
		m.byDoc[r.DocumentID][r.ChunkID] = true
	}
	return nil
}

// Search performs brute-force k-NN over every stored vector, optionally
// restricted to one document; the document filter is applied to every
// record before ranking, so no over-fetching is needed.
func (m *MemoryStore) Search(ctx context.Context, query []float32, topK int, documentID string) ([]SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type scored struct {
		rec   Record
		simil float64
	}
	var candidates []scored
	for _, r := range m.records {
		if documentID != "" && r.DocumentID != documentID {
			continue
		}
		candidates = append(candidates, scored{rec: r, simil: l2Similarity(query, r.Vector)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].simil > candidates[j].simil })

	if topK > len(candidates) {
		topK = len(candidates)
	}
	out := make([]SearchResult, topK)
	for i := 0; i < topK; i++ {
		out[i] = SearchResult{
			ChunkID:    candidates[i].rec.ChunkID,
			DocumentID: candidates[i].rec.DocumentID,
			Similarity: candidates[i].simil,
		}
	}
	return out, nil
}

// Stats reports the number of distinct chunks and documents currently
// indexed.
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{TotalChunks: len(m.records), TotalDocuments: len(m.byDoc)}, nil
}

// l2Similarity computes 1/(1+L2 distance) between two vectors of equal
// length. Mismatched lengths yield zero similarity rather than a panic.
func l2Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sumSq float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sumSq += d * d
	}
	return 1.0 / (1.0 + math.Sqrt(sumSq))
}
