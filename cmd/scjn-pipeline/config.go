package main

import (
	"flag"
	"fmt"
	"time"
)

// discoverFlags holds the discover subcommand's recognized options (spec
// §6's Config surface, plus the upstream search scope).
type discoverFlags struct {
	maxResults     int
	category       string
	scope          string
	status         string
	outputDir      string
	checkpointDir  string
	concurrency    int
	rateLimit      float64
	skipPDFs       bool
	allPages       bool
	maxPages       int
	natsURL        string
	searchURL      string
	detailURLTmpl  string
	pdfURLTmpl     string
	userAgent      string
	httpTimeout    time.Duration
	pdfMaxBytes    int64
	chunkMaxTokens int
	chunkOverlap   int
	chunkMinTokens int
	respectBounds  bool
	embedDimension int
	embedModelPath string
	storageMode    string
	qdrantAddr     string
	qdrantColl     string
	postgresDSN    string
	neo4jURL       string
	neo4jUser      string
	neo4jPass      string
	maxRetries     int
	checkpointEvery int
	metricsPort    int
}

func parseDiscoverFlags(args []string) (discoverFlags, error) {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	f := discoverFlags{}
	fs.IntVar(&f.maxResults, "max-results", 0, "stop after discovering this many documents (0 = unlimited)")
	fs.StringVar(&f.category, "category", "", "upstream categoria filter")
	fs.StringVar(&f.scope, "scope", "", "upstream ambito filter")
	fs.StringVar(&f.status, "status", "", "upstream estatus filter")
	fs.StringVar(&f.outputDir, "output-dir", "./data", "local storage root for documents/embeddings")
	fs.StringVar(&f.checkpointDir, "checkpoint-dir", "./checkpoints", "checkpoint directory")
	fs.IntVar(&f.concurrency, "concurrency", 3, "max concurrent downloads")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0.5, "upstream requests per second")
	fs.BoolVar(&f.skipPDFs, "skip-pdfs", false, "skip reform PDF download and processing")
	fs.BoolVar(&f.allPages, "all-pages", false, "walk every search results page")
	fs.IntVar(&f.maxPages, "max-pages", 0, "discovery page cap (0 = package default)")
	fs.StringVar(&f.natsURL, "nats", "nats://127.0.0.1:4222", "NATS URL")
	fs.StringVar(&f.searchURL, "search-url", "https://www2.scjn.gob.mx/red/legislacion/", "upstream search endpoint")
	fs.StringVar(&f.detailURLTmpl, "detail-url", "https://www2.scjn.gob.mx/red/legislacion/wfOrdenamientoDetalle.aspx?q=%s", "upstream detail URL template (one %s verb)")
	fs.StringVar(&f.pdfURLTmpl, "pdf-url", "https://www2.scjn.gob.mx/red/legislacion/AbrirDocReforma.aspx?q=%s", "upstream reform PDF URL template (one %s verb)")
	fs.StringVar(&f.userAgent, "user-agent", "scjn-pipeline/1.0 (+legislative document ingestion)", "User-Agent sent on every upstream request")
	fs.DurationVar(&f.httpTimeout, "http-timeout", 30*time.Second, "per-request HTTP timeout")
	fs.Int64Var(&f.pdfMaxBytes, "pdf-max-bytes", 50*1024*1024, "max reform PDF size in bytes")
	fs.IntVar(&f.chunkMaxTokens, "chunk-max-tokens", 512, "chunker max tokens per chunk")
	fs.IntVar(&f.chunkOverlap, "chunk-overlap-tokens", 50, "chunker overlap tokens")
	fs.IntVar(&f.chunkMinTokens, "chunk-min-tokens", 100, "chunker minimum tokens per chunk")
	fs.BoolVar(&f.respectBounds, "respect-boundaries", true, "chunk along article/paragraph/sentence boundaries")
	fs.IntVar(&f.embedDimension, "embedding-dimension", 0, "embedding vector width (0 = embedder package default)")
	fs.StringVar(&f.embedModelPath, "embed-model", "", "local sentence-transformer model path (empty = pseudo-embedder fallback)")
	fs.StringVar(&f.storageMode, "storage-mode", "local", "local | remote | dual")
	fs.StringVar(&f.qdrantAddr, "qdrant", "", "Qdrant gRPC address (empty = in-memory vector store)")
	fs.StringVar(&f.qdrantColl, "qdrant-collection", "scjn", "Qdrant collection name")
	fs.StringVar(&f.postgresDSN, "postgres-dsn", "", "Postgres DSN for the remote persistence adapter")
	fs.StringVar(&f.neo4jURL, "neo4j", "", "Neo4j bolt URL (empty = lineage graph disabled)")
	fs.StringVar(&f.neo4jUser, "neo4j-user", "neo4j", "Neo4j username")
	fs.StringVar(&f.neo4jPass, "neo4j-pass", "", "Neo4j password")
	fs.IntVar(&f.maxRetries, "max-retries", 3, "per-q_param retry ceiling")
	fs.IntVar(&f.checkpointEvery, "checkpoint-interval", 10, "downloads between checkpoints")
	fs.IntVar(&f.metricsPort, "metrics-port", 9191, "Prometheus-format /metrics port (0 = disabled)")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.storageMode != "local" && f.storageMode != "remote" && f.storageMode != "dual" {
		return f, fmt.Errorf("invalid -storage-mode %q: want local, remote, or dual", f.storageMode)
	}
	return f, nil
}

type statusFlags struct {
	checkpointDir string
}

func parseStatusFlags(args []string) (statusFlags, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	f := statusFlags{}
	fs.StringVar(&f.checkpointDir, "checkpoint-dir", "./checkpoints", "checkpoint directory")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	return f, nil
}

type resumeFlags struct {
	discoverFlags
	sessionID string
}

func parseResumeFlags(args []string) (resumeFlags, error) {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	f := resumeFlags{}
	fs.StringVar(&f.sessionID, "session-id", "", "session id to resume (required)")
	// resume shares the same tunables discover does, so operators can
	// reconnect to the same upstream/storage without repeating every flag.
	fs.IntVar(&f.maxResults, "max-results", 0, "stop after discovering this many documents (0 = unlimited)")
	fs.StringVar(&f.outputDir, "output-dir", "./data", "local storage root for documents/embeddings")
	fs.StringVar(&f.checkpointDir, "checkpoint-dir", "./checkpoints", "checkpoint directory")
	fs.IntVar(&f.concurrency, "concurrency", 3, "max concurrent downloads")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0.5, "upstream requests per second")
	fs.BoolVar(&f.skipPDFs, "skip-pdfs", false, "skip reform PDF download and processing")
	fs.StringVar(&f.natsURL, "nats", "nats://127.0.0.1:4222", "NATS URL")
	fs.StringVar(&f.searchURL, "search-url", "https://www2.scjn.gob.mx/red/legislacion/", "upstream search endpoint")
	fs.StringVar(&f.detailURLTmpl, "detail-url", "https://www2.scjn.gob.mx/red/legislacion/wfOrdenamientoDetalle.aspx?q=%s", "upstream detail URL template (one %s verb)")
	fs.StringVar(&f.pdfURLTmpl, "pdf-url", "https://www2.scjn.gob.mx/red/legislacion/AbrirDocReforma.aspx?q=%s", "upstream reform PDF URL template (one %s verb)")
	fs.StringVar(&f.userAgent, "user-agent", "scjn-pipeline/1.0 (+legislative document ingestion)", "User-Agent sent on every upstream request")
	fs.DurationVar(&f.httpTimeout, "http-timeout", 30*time.Second, "per-request HTTP timeout")
	fs.Int64Var(&f.pdfMaxBytes, "pdf-max-bytes", 50*1024*1024, "max reform PDF size in bytes")
	fs.StringVar(&f.storageMode, "storage-mode", "local", "local | remote | dual")
	fs.StringVar(&f.qdrantAddr, "qdrant", "", "Qdrant gRPC address (empty = in-memory vector store)")
	fs.StringVar(&f.qdrantColl, "qdrant-collection", "scjn", "Qdrant collection name")
	fs.StringVar(&f.postgresDSN, "postgres-dsn", "", "Postgres DSN for the remote persistence adapter")
	fs.StringVar(&f.neo4jURL, "neo4j", "", "Neo4j bolt URL (empty = lineage graph disabled)")
	fs.StringVar(&f.neo4jUser, "neo4j-user", "neo4j", "Neo4j username")
	fs.StringVar(&f.neo4jPass, "neo4j-pass", "", "Neo4j password")
	fs.IntVar(&f.maxRetries, "max-retries", 3, "per-q_param retry ceiling")
	fs.IntVar(&f.checkpointEvery, "checkpoint-interval", 10, "downloads between checkpoints")
	fs.IntVar(&f.metricsPort, "metrics-port", 9191, "Prometheus-format /metrics port (0 = disabled)")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.sessionID == "" {
		return f, fmt.Errorf("-session-id is required")
	}
	return f, nil
}
