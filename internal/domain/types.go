package domain

import "time"

// Document is the central aggregate: one SCJN legal ordinance, identified
// by its opaque, internally assigned ID, with QParam as the externally
// derived dedup key.
type Document struct {
	ID              string     `json:"id"`
	QParam          string     `json:"q_param"`
	Title           string     `json:"title"`
	ShortTitle      string     `json:"short_title"`
	Category        Category   `json:"category"`
	Scope           Scope      `json:"scope"`
	Status          Status     `json:"status"`
	PublicationDate *time.Time `json:"publication_date"`
	ExpeditionDate  *time.Time `json:"expedition_date"`
	State           string     `json:"state,omitempty"`
	SubjectTags     []string   `json:"subject_tags,omitempty"`
	Articles        []Article  `json:"articles"`
	Reforms         []Reform   `json:"reforms"`
	SourceURL       string     `json:"source_url"`
}

// Article is a single numbered (or Spanish-ordinal transitory) provision
// embedded by value in its owning Document.
type Article struct {
	Number       string     `json:"number"`
	Title        string     `json:"title,omitempty"`
	Content      string     `json:"content"`
	ReformDates  []time.Time `json:"reform_dates,omitempty"`
	IsTransitory bool       `json:"is_transitory"`
}

// Reform is an amendment to a Document, with its own detail page and an
// optional PDF of the published gazette text.
type Reform struct {
	ID              string     `json:"id"`
	QParam          string     `json:"q_param"`
	Title           string     `json:"title,omitempty"`
	PublicationDate *time.Time `json:"publication_date"`
	PublicationNum  string     `json:"publication_number,omitempty"`
	GazetteSection  string     `json:"gazette_section,omitempty"`
	ExtractedText   string     `json:"extracted_text,omitempty"`
	PDFPath         string     `json:"pdf_path,omitempty"`
}

// HasPDF reports whether this reform has a downloaded PDF on disk.
func (r Reform) HasPDF() bool { return r.PDFPath != "" }

// TextChunk is one window of a PDF's extracted text, produced by the
// legal-boundary-aware chunker.
type TextChunk struct {
	ID          string            `json:"id"` // "{document_id}-chunk-{n:04d}"
	DocumentID  string            `json:"document_id"`
	Content     string            `json:"content"`
	TokenCount  int               `json:"token_count"`
	ChunkIndex  int               `json:"chunk_index"`
	BoundaryType BoundaryType     `json:"boundary_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Embedding is the dense vector representation of one TextChunk.
type Embedding struct {
	ChunkID   string    `json:"chunk_id"`
	Vector    []float32 `json:"vector"`
	ModelName string    `json:"model_name"`
}

// Checkpoint is a resumable snapshot of one discovery/download session.
type Checkpoint struct {
	SessionID            string    `json:"session_id"`
	LastProcessedQParam  string    `json:"last_processed_q_param"`
	ProcessedCount       int       `json:"processed_count"`
	FailedQParams        []string  `json:"failed_q_params"`
	CreatedAt            time.Time `json:"created_at"`
}

// SearchResultItem is one row parsed from the SCJN search results grid.
type SearchResultItem struct {
	Title           string
	QParam          string
	PublicationDate *time.Time
	ExpeditionDate  *time.Time
	Status          Status
	Category        Category
	Scope           Scope
	HasExtract      bool
	HasPDF          bool
}

// DocumentDetailResult is the transient output of the Detail Parser.
type DocumentDetailResult struct {
	Title           string
	Category        Category
	Scope           Scope
	Status          Status
	PublicationDate *time.Time
	ExpeditionDate  *time.Time
	Articles        []Article
	Reforms         []ReformResult
}

// ReformResult is one row parsed from a document's reforms table.
type ReformResult struct {
	QParam          string
	Title           string
	PublicationDate *time.Time
	GazetteSection  string
	HasPDF          bool
}

// PipelineState is the Coordinator-owned snapshot of an in-progress run.
// It is the only structure any component is permitted to mutate outside
// its own mailbox.
type PipelineState struct {
	DiscoveredQParams    map[string]bool `json:"-"`
	DownloadedQParams    map[string]bool `json:"-"`
	PendingQueue         []string        `json:"-"`
	RetryQueue           []string        `json:"-"`
	RetryCounts          map[string]int  `json:"-"`
	ActiveDownloads      int             `json:"-"`
	ErrorCount           int             `json:"-"`
	StateVariant         RunState        `json:"-"`
	CurrentCorrelationID string          `json:"-"`
}

// RunState is the Coordinator's top-level state-machine variant.
type RunState string

const (
	StateIdle         RunState = "idle"
	StateDiscovering  RunState = "discovering"
	StateDownloading  RunState = "downloading"
	StateProcessing   RunState = "processing"
	StateCompleted    RunState = "completed"
	StatePaused       RunState = "paused"
	StateError        RunState = "error"
)

// NewPipelineState returns a PipelineState with its maps initialized.
func NewPipelineState() *PipelineState {
	return &PipelineState{
		DiscoveredQParams: make(map[string]bool),
		DownloadedQParams: make(map[string]bool),
		RetryCounts:       make(map[string]int),
		StateVariant:      StateIdle,
	}
}
