// Package persistence implements the Persistence Adapter (spec §4.10):
// idempotent document/chunk writes and existence checks, local-disk or
// remote-Postgres backed, with local always the durable fallback.
package persistence

import "context"

// Adapter is the contract every persistence backend satisfies.
type Adapter interface {
	// Save upserts a document, keyed by its q_param. Re-saving the same
	// q_param replaces the record with the latest version.
	Save(ctx context.Context, doc Document) error
	// Exists reports whether a document with the given q_param has ever
	// been saved.
	Exists(ctx context.Context, qParam string) (bool, error)
	// SaveChunks batch-upserts chunk embeddings keyed by chunk_id.
	SaveChunks(ctx context.Context, documentID string, chunks []ChunkRecord) error
}

// Document is the persisted shape of a domain.Document: every enum
// serialized as its canonical uppercase value, dates as ISO-8601, and
// missing optional dates as explicit null (the nil pointer fields).
type Document struct {
	ID              string
	QParam          string
	Title           string
	ShortTitle      string
	Category        string
	Scope           string
	Status          string
	PublicationDate *string
	ExpeditionDate  *string
	State           string
	SubjectTags     []string
	Articles        []ArticleRecord
	Reforms         []ReformRecord
	SourceURL       string
	ChunkCount      int
	EmbeddingStatus string
}

// ArticleRecord is the persisted shape of a domain.Article.
type ArticleRecord struct {
	Number       string
	Title        string
	Content      string
	ReformDates  []string
	IsTransitory bool
}

// ReformRecord is the persisted shape of a domain.Reform.
type ReformRecord struct {
	ID              string
	QParam          string
	Title           string
	PublicationDate *string
	PublicationNum  string
	GazetteSection  string
	ExtractedText   string
	PDFPath         string
}

// ChunkRecord is the persisted shape of a domain.TextChunk plus its
// embedding vector.
type ChunkRecord struct {
	ChunkID    string
	DocumentID string
	Content    string
	TokenCount int
	ChunkIndex int
	Vector     []float32
	ModelName  string
}
