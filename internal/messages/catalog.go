// Package messages defines the typed Command/Event/Error catalog that
// flows between pipeline workers over NATS subjects via pkg/natsutil.
// Every message carries a CorrelationID linking a command to whatever
// events or errors it eventually produces, and a Timestamp for ordering
// diagnostics.
package messages

import (
	"time"

	"github.com/scjn/scjn-pipeline/internal/domain"
)

// Envelope fields shared by every Command, Event and Error.
type Envelope struct {
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Subjects used on the NATS mailbox substrate. One subject per message
// type keeps each worker's Subscribe call narrowly typed.
const (
	SubjectDiscover          = "scjn.cmd.discover"
	SubjectDiscoverPage      = "scjn.cmd.discover_page"
	SubjectDownload          = "scjn.cmd.download"
	SubjectProcessPDF        = "scjn.cmd.process_pdf"
	SubjectGenerateEmbeddings = "scjn.cmd.generate_embeddings"
	SubjectSaveDocument      = "scjn.cmd.save_document"
	SubjectSaveEmbeddings    = "scjn.cmd.save_embeddings"
	SubjectSearchSimilar     = "scjn.cmd.search_similar"
	SubjectSaveCheckpoint    = "scjn.cmd.save_checkpoint"
	SubjectLoadCheckpoint    = "scjn.cmd.load_checkpoint"
	SubjectPause             = "scjn.cmd.pause"
	SubjectResume            = "scjn.cmd.resume"
	SubjectGetState          = "scjn.cmd.get_state"

	SubjectDocumentDiscovered = "scjn.evt.document_discovered"
	SubjectPageDiscovered     = "scjn.evt.page_discovered"
	SubjectDocumentDownloaded = "scjn.evt.document_downloaded"
	SubjectPDFProcessed       = "scjn.evt.pdf_processed"
	SubjectEmbeddingsGenerated = "scjn.evt.embeddings_generated"
	SubjectDocumentSaved      = "scjn.evt.document_saved"
	SubjectCheckpointSaved    = "scjn.evt.checkpoint_saved"
	SubjectSearchResults      = "scjn.evt.search_results"

	SubjectWorkerError = "scjn.err.worker_error"
)

// --- Commands ---

// Discover asks the Discovery Worker to begin (or continue) paginated
// search discovery.
type Discover struct {
	Envelope
	Category        string `json:"category,omitempty"`
	Scope           string `json:"scope,omitempty"`
	Status          string `json:"status,omitempty"`
	DiscoverAllPages bool   `json:"discover_all_pages"`
	MaxPages        int    `json:"max_pages,omitempty"`
}

// DiscoverPage asks for a single search results page.
type DiscoverPage struct {
	Envelope
	Page int `json:"page"`
}

// Download asks the Scraper Worker to fetch and parse one document's
// detail page (and, if requested, its reform PDFs).
type Download struct {
	Envelope
	QParam     string `json:"q_param"`
	IncludePDF bool   `json:"include_pdf"`
}

// ProcessPDF asks the PDF Processor Worker to extract and chunk one PDF.
type ProcessPDF struct {
	Envelope
	DocumentID string `json:"document_id"`
	PDFPath    string `json:"pdf_path"`
	SourceURL  string `json:"source_url"`
}

// GenerateEmbeddings asks the Embedder to vectorize a batch of chunks.
type GenerateEmbeddings struct {
	Envelope
	Chunks []domain.TextChunk `json:"chunks"`
}

// SaveDocument asks the Persistence Adapter to upsert a Document.
type SaveDocument struct {
	Envelope
	Document domain.Document `json:"document"`
}

// SaveEmbeddings asks the Vector Store and Persistence Adapter to store
// a batch of embeddings.
type SaveEmbeddings struct {
	Envelope
	Embeddings []domain.Embedding `json:"embeddings"`
}

// SearchSimilar asks the Vector Store for the nearest chunks to a query
// vector, optionally filtered to one document.
type SearchSimilar struct {
	Envelope
	QueryVector []float32 `json:"query_vector"`
	TopK        int       `json:"top_k"`
	DocumentID  string    `json:"document_id,omitempty"`
}

// SaveCheckpoint asks the Checkpoint Store to persist a session snapshot.
type SaveCheckpoint struct {
	Envelope
	Checkpoint domain.Checkpoint `json:"checkpoint"`
}

// LoadCheckpoint asks the Checkpoint Store for a prior session's snapshot.
type LoadCheckpoint struct {
	Envelope
	SessionID string `json:"session_id"`
}

// Pause asks the Coordinator to stop dispatching new work.
type Pause struct{ Envelope }

// Resume asks the Coordinator to resume dispatching work, optionally
// rehydrating from a prior checkpoint session.
type Resume struct {
	Envelope
	SessionID string `json:"session_id,omitempty"`
}

// GetState asks the Coordinator for a snapshot of its current counters.
type GetState struct{ Envelope }

// --- Events ---

// DocumentDiscovered is emitted by the Discovery Worker per new row found
// on a search results page.
type DocumentDiscovered struct {
	Envelope
	Item domain.SearchResultItem `json:"item"`
}

// PageDiscovered is emitted once a discovery pass over one or more pages
// completes.
type PageDiscovered struct {
	Envelope
	PagesFetched int `json:"pages_fetched"`
	ItemsFound   int `json:"items_found"`
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	HasMorePages bool `json:"has_more_pages"`
}

// DocumentDownloaded is emitted once the Scraper Worker has parsed a
// document's detail page.
type DocumentDownloaded struct {
	Envelope
	Document domain.Document `json:"document"`
}

// PDFProcessed is emitted once the PDF Processor Worker has extracted and
// chunked a PDF.
type PDFProcessed struct {
	Envelope
	DocumentID         string             `json:"document_id"`
	Chunks             []domain.TextChunk `json:"chunks"`
	TotalTokens        int                `json:"total_tokens"`
	ExtractionConfidence float64          `json:"extraction_confidence"`
}

// EmbeddingsGenerated is emitted once the Embedder has vectorized a batch
// of chunks.
type EmbeddingsGenerated struct {
	Envelope
	Embeddings []domain.Embedding `json:"embeddings"`
}

// DocumentSaved is emitted once the Persistence Adapter has durably
// stored a Document, regardless of whether the write landed locally,
// remotely, or both.
type DocumentSaved struct {
	Envelope
	DocumentID string `json:"document_id"`
	QParam     string `json:"q_param"`
}

// CheckpointSaved is emitted once the Checkpoint Store has durably
// written a session snapshot.
type CheckpointSaved struct {
	Envelope
	SessionID string `json:"session_id"`
}

// SearchResults is emitted in reply to SearchSimilar.
type SearchResults struct {
	Envelope
	Results []VectorSearchResult `json:"results"`
}

// VectorSearchResult is one ranked hit from the Vector Store.
type VectorSearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
}

// --- Errors ---

// WorkerErrorMsg is the typed mailbox representation of domain.WorkerError,
// fire-and-forget posted back to the Coordinator from any worker.
type WorkerErrorMsg struct {
	Envelope
	QParam         string `json:"q_param"`
	Recoverable    bool   `json:"recoverable"`
	Message        string `json:"message"`
	OriginalSubject string `json:"original_subject,omitempty"`
}
