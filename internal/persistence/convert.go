package persistence

import (
	"time"

	"github.com/scjn/scjn-pipeline/internal/domain"
)

const isoDate = "2006-01-02"

func isoPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(isoDate)
	return &s
}

// FromDomain converts a domain.Document into its persisted shape.
func FromDomain(d *domain.Document) Document {
	articles := make([]ArticleRecord, len(d.Articles))
	for i, a := range d.Articles {
		articles[i] = ArticleRecord{
			Number:       a.Number,
			Title:        a.Title,
			Content:      a.Content,
			ReformDates:  a.ReformDates,
			IsTransitory: a.IsTransitory,
		}
	}

	reforms := make([]ReformRecord, len(d.Reforms))
	for i, r := range d.Reforms {
		reforms[i] = ReformRecord{
			ID:              r.ID,
			QParam:          r.QParam,
			Title:           r.Title,
			PublicationDate: isoPtr(r.PublicationDate),
			PublicationNum:  r.PublicationNum,
			GazetteSection:  r.GazetteSection,
			ExtractedText:   r.ExtractedText,
			PDFPath:         r.PDFPath,
		}
	}

	return Document{
		ID:              d.ID,
		QParam:          d.QParam,
		Title:           d.Title,
		ShortTitle:      d.ShortTitle,
		Category:        string(d.Category),
		Scope:           string(d.Scope),
		Status:          string(d.Status),
		PublicationDate: isoPtr(d.PublicationDate),
		ExpeditionDate:  isoPtr(d.ExpeditionDate),
		State:           d.State,
		SubjectTags:     d.SubjectTags,
		Articles:        articles,
		Reforms:         reforms,
		SourceURL:       d.SourceURL,
	}
}

// ChunksFromDomain zips chunks and their embeddings into ChunkRecords. The
// slices must be the same length and index-aligned, as produced by the PDF
// Processor → Embedder handoff.
func ChunksFromDomain(documentID string, chunks []domain.TextChunk, embeddings []domain.Embedding) []ChunkRecord {
	byChunk := make(map[string]domain.Embedding, len(embeddings))
	for _, e := range embeddings {
		byChunk[e.ChunkID] = e
	}

	out := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		e := byChunk[c.ID]
		out[i] = ChunkRecord{
			ChunkID:    c.ID,
			DocumentID: documentID,
			Content:    c.Content,
			TokenCount: c.TokenCount,
			ChunkIndex: c.ChunkIndex,
			Vector:     e.Vector,
			ModelName:  e.ModelName,
		}
	}
	return out
}
