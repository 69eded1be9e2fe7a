package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// RemoteAdapter persists documents into a parent documents table plus a
// domain-specific scjn_documents child table (spec §4.10), with chunk
// embeddings in a pgvector column.
type RemoteAdapter struct {
	pool      *pgxpool.Pool
	dimension int
}

var _ Adapter = (*RemoteAdapter)(nil)

// NewRemoteAdapter connects to Postgres and ensures the schema exists.
func NewRemoteAdapter(ctx context.Context, dsn string, dimension int) (*RemoteAdapter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: connect postgres: %w", err)
	}
	r := &RemoteAdapter{pool: pool, dimension: dimension}
	if err := r.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying connection pool.
func (r *RemoteAdapter) Close() { r.pool.Close() }

func (r *RemoteAdapter) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	external_id TEXT NOT NULL,
	source_type TEXT NOT NULL,
	title TEXT NOT NULL,
	publication_date DATE,
	UNIQUE (external_id, source_type)
);

CREATE TABLE IF NOT EXISTS scjn_documents (
	document_id UUID PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	q_param TEXT NOT NULL,
	short_title TEXT,
	category TEXT NOT NULL,
	scope TEXT NOT NULL,
	status TEXT NOT NULL,
	expedition_date DATE,
	state TEXT,
	subject_tags JSONB,
	articles JSONB,
	reforms JSONB,
	source_url TEXT,
	chunk_count INT NOT NULL DEFAULT 0,
	embedding_status TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE IF NOT EXISTS scjn_chunks (
	chunk_id TEXT PRIMARY KEY,
	document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INT NOT NULL,
	content TEXT NOT NULL,
	token_count INT NOT NULL,
	embedding vector(%[1]d),
	model_name TEXT
);
`, r.dimension)

	_, err := r.pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("persistence: ensure schema: %w", err)
	}
	return nil
}

// Save upserts the parent/child row pair in one transaction, keyed by
// (external_id=q_param, source_type='scjn').
func (r *RemoteAdapter) Save(ctx context.Context, doc Document) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persistence: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	subjectTags, err := json.Marshal(doc.SubjectTags)
	if err != nil {
		return fmt.Errorf("persistence: marshal subject_tags: %w", err)
	}
	articles, err := json.Marshal(doc.Articles)
	if err != nil {
		return fmt.Errorf("persistence: marshal articles: %w", err)
	}
	reforms, err := json.Marshal(doc.Reforms)
	if err != nil {
		return fmt.Errorf("persistence: marshal reforms: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO documents (id, external_id, source_type, title, publication_date)
VALUES ($1, $2, 'scjn', $3, $4)
ON CONFLICT (external_id, source_type) DO UPDATE SET
	title = EXCLUDED.title, publication_date = EXCLUDED.publication_date`,
		doc.ID, doc.QParam, doc.Title, doc.PublicationDate)
	if err != nil {
		return fmt.Errorf("persistence: upsert documents row: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO scjn_documents (document_id, q_param, short_title, category, scope, status,
	expedition_date, state, subject_tags, articles, reforms, source_url, chunk_count, embedding_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (document_id) DO UPDATE SET
	q_param = EXCLUDED.q_param, short_title = EXCLUDED.short_title, category = EXCLUDED.category,
	scope = EXCLUDED.scope, status = EXCLUDED.status, expedition_date = EXCLUDED.expedition_date,
	state = EXCLUDED.state, subject_tags = EXCLUDED.subject_tags, articles = EXCLUDED.articles,
	reforms = EXCLUDED.reforms, source_url = EXCLUDED.source_url, chunk_count = EXCLUDED.chunk_count,
	embedding_status = EXCLUDED.embedding_status`,
		doc.ID, doc.QParam, doc.ShortTitle, doc.Category, doc.Scope, doc.Status,
		doc.ExpeditionDate, doc.State, subjectTags, articles, reforms, doc.SourceURL,
		doc.ChunkCount, doc.EmbeddingStatus)
	if err != nil {
		return fmt.Errorf("persistence: upsert scjn_documents row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("persistence: commit tx: %w", err)
	}
	return nil
}

// Exists checks the remote documents table directly rather than any
// in-memory cache, since the remote store is itself the system of record
// when enabled.
func (r *RemoteAdapter) Exists(ctx context.Context, qParam string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE external_id = $1 AND source_type = 'scjn')`,
		qParam,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("persistence: check exists: %w", err)
	}
	return exists, nil
}

// SaveChunks batch-upserts chunk rows, storing each embedding as a
// pgvector column value.
func (r *RemoteAdapter) SaveChunks(ctx context.Context, documentID string, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persistence: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO scjn_chunks (chunk_id, document_id, chunk_index, content, token_count, embedding, model_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (chunk_id) DO UPDATE SET
	content = EXCLUDED.content, token_count = EXCLUDED.token_count,
	embedding = EXCLUDED.embedding, model_name = EXCLUDED.model_name`,
			c.ChunkID, documentID, c.ChunkIndex, c.Content, c.TokenCount, pgvector.NewVector(c.Vector), c.ModelName)
		if err != nil {
			return fmt.Errorf("persistence: upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	return tx.Commit(ctx)
}
