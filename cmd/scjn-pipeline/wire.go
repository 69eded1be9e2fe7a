package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/scjn/scjn-pipeline/internal/bridge"
	"github.com/scjn/scjn-pipeline/internal/checkpoint"
	"github.com/scjn/scjn-pipeline/internal/coordinator"
	"github.com/scjn/scjn-pipeline/internal/discovery"
	"github.com/scjn/scjn-pipeline/internal/domain"
	"github.com/scjn/scjn-pipeline/internal/embedder"
	"github.com/scjn/scjn-pipeline/internal/fetch"
	"github.com/scjn/scjn-pipeline/internal/lineage"
	"github.com/scjn/scjn-pipeline/internal/messages"
	"github.com/scjn/scjn-pipeline/internal/pdfproc"
	"github.com/scjn/scjn-pipeline/internal/pdfworker"
	"github.com/scjn/scjn-pipeline/internal/persistence"
	"github.com/scjn/scjn-pipeline/internal/ratelimit"
	"github.com/scjn/scjn-pipeline/internal/scraper"
	"github.com/scjn/scjn-pipeline/internal/vectorstore"
	"github.com/scjn/scjn-pipeline/pkg/metrics"
	"github.com/scjn/scjn-pipeline/pkg/mid"
	"github.com/scjn/scjn-pipeline/pkg/natsutil"
)

// pipeline bundles every wired component a subcommand needs, plus a
// Close to release connections cleanly.
type pipeline struct {
	nc          *nats.Conn
	coordinator *coordinator.Coordinator
	bridge      *bridge.Bridge
	checkpoints *checkpoint.Store
	metrics     *metrics.Registry
	sessionID   string

	closers []func()
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

var met = metrics.New()

var (
	mDiscovered = met.Counter("scjn_pipeline_discovered_total", "Documents discovered")
	mDownloaded = met.Counter("scjn_pipeline_downloaded_total", "Documents downloaded")
	mErrors     = met.Counter("scjn_pipeline_errors_total", "Worker errors surfaced to the coordinator")
	mPDFsProcessed = met.Counter("scjn_pipeline_pdfs_processed_total", "Reform PDFs extracted and chunked")
	mEmbedBatches  = met.Counter("scjn_pipeline_embed_batches_total", "Embedding batches generated")
	mActiveDownloads = met.Gauge("scjn_pipeline_active_downloads", "Downloads currently in flight")
)

// buildPipeline wires every internal package together over NATS subjects,
// per the Message Catalog: each worker's Emit*/Dispatch* dependency
// publishes onto its subject, and a Subscribe registers the handler that
// consumes it on the other end. This is the only place messages.* and
// natsutil meet concrete workers.
func buildPipeline(ctx context.Context, sessionID string, f discoverFlags, log *slog.Logger) (*pipeline, error) {
	p := &pipeline{sessionID: sessionID, metrics: met}

	nc, err := nats.Connect(f.natsURL)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p.nc = nc
	p.closers = append(p.closers, nc.Close)

	cpStore, err := checkpoint.New(f.checkpointDir)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}
	p.checkpoints = cpStore

	local, err := persistence.NewLocalAdapter(filepath.Join(f.outputDir, "documents"), filepath.Join(f.outputDir, "embeddings"))
	if err != nil {
		return nil, fmt.Errorf("local persistence: %w", err)
	}

	var remote persistence.Adapter
	if f.storageMode != "local" {
		dims := f.embedDimension
		if dims <= 0 {
			dims = embedder.Dimension
		}
		ra, err := persistence.NewRemoteAdapter(ctx, f.postgresDSN, dims)
		if err != nil {
			return nil, fmt.Errorf("remote persistence: %w", err)
		}
		remote = ra
		p.closers = append(p.closers, ra.Close)
	}

	var mode persistence.Mode
	switch f.storageMode {
	case "remote":
		mode = persistence.ModeRemoteOnly
	case "dual":
		mode = persistence.ModeDual
	default:
		mode = persistence.ModeLocalOnly
	}
	persist := persistence.NewDualAdapter(local, remote, mode, func(err error) {
		log.Warn("persistence: remote write downgraded to warning", "error", err)
	})

	var vstore vectorstore.Store
	if f.qdrantAddr != "" {
		qs, err := vectorstore.NewQdrantStore(f.qdrantAddr, f.qdrantColl)
		if err != nil {
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		dims := f.embedDimension
		if dims <= 0 {
			dims = embedder.Dimension
		}
		if err := qs.EnsureCollection(ctx, dims); err != nil {
			return nil, fmt.Errorf("qdrant ensure collection: %w", err)
		}
		vstore = qs
		p.closers = append(p.closers, func() { qs.Close() })
	} else {
		vstore = vectorstore.NewMemoryStore()
	}

	embed := embedder.New(f.embedModelPath)

	var graph *lineage.Graph
	if f.neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(f.neo4jURL, neo4j.BasicAuth(f.neo4jUser, f.neo4jPass, ""))
		if err != nil {
			return nil, fmt.Errorf("neo4j driver: %w", err)
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return nil, fmt.Errorf("neo4j connectivity: %w", err)
		}
		graph = lineage.NewGraph(driver)
		p.closers = append(p.closers, func() { driver.Close(ctx) })
	}

	limiter := ratelimit.NewTokenBucket(f.rateLimit, ratelimit.DefaultBurst)
	httpClient := &http.Client{Timeout: f.httpTimeout}
	fetcher := fetch.NewHTTPFetcher(httpClient, f.userAgent)

	pdfDir := filepath.Join(f.outputDir, "pdf-staging")

	disco := discovery.New(discovery.Config{SearchURL: f.searchURL, MaxPages: f.maxPages}, discovery.Dependencies{
		Fetch:   fetcher,
		Limiter: limiter,
		EmitDiscovered: func(ctx context.Context, evt messages.DocumentDiscovered) {
			natsutil.Publish(ctx, nc, messages.SubjectDocumentDiscovered, evt)
		},
		EmitPageDiscovered: func(ctx context.Context, evt messages.PageDiscovered) {
			natsutil.Publish(ctx, nc, messages.SubjectPageDiscovered, evt)
		},
		EmitError: func(ctx context.Context, errMsg messages.WorkerErrorMsg) {
			natsutil.Publish(ctx, nc, messages.SubjectWorkerError, errMsg)
		},
		Logger: log,
	})

	scrapeWorker := scraper.New(scraper.Config{
		DetailURLTemplate: f.detailURLTmpl,
		PDFURLTemplate:    f.pdfURLTmpl,
		PDFMaxBytes:       f.pdfMaxBytes,
		PDFDir:            pdfDir,
	}, scraper.Dependencies{
		Fetch:   fetcher,
		Limiter: limiter,
		EmitDownloaded: func(ctx context.Context, evt messages.DocumentDownloaded) {
			natsutil.Publish(ctx, nc, messages.SubjectDocumentDownloaded, evt)
		},
		SaveDocument: func(ctx context.Context, cmd messages.SaveDocument) {
			natsutil.Publish(ctx, nc, messages.SubjectSaveDocument, cmd)
		},
		DispatchProcessPDF: func(ctx context.Context, cmd messages.ProcessPDF) {
			if f.skipPDFs {
				return
			}
			natsutil.Publish(ctx, nc, messages.SubjectProcessPDF, cmd)
		},
		EmitError: func(ctx context.Context, errMsg messages.WorkerErrorMsg) {
			natsutil.Publish(ctx, nc, messages.SubjectWorkerError, errMsg)
		},
		Logger: log,
	})

	pdfWorker := pdfworker.New(pdfworker.Config{Chunker: pdfproc.Config{
		MaxTokens:         f.chunkMaxTokens,
		OverlapTokens:     f.chunkOverlap,
		MinChunkTokens:    f.chunkMinTokens,
		RespectBoundaries: f.respectBounds,
	}}, pdfworker.Dependencies{
		EmitProcessed: func(ctx context.Context, evt messages.PDFProcessed) {
			natsutil.Publish(ctx, nc, messages.SubjectPDFProcessed, evt)
		},
		EmitError: func(ctx context.Context, errMsg messages.WorkerErrorMsg) {
			natsutil.Publish(ctx, nc, messages.SubjectWorkerError, errMsg)
		},
		Logger: log,
	})

	coord := coordinator.New(sessionID, coordinator.Config{
		MaxConcurrentDownloads: f.concurrency,
		MaxRetries:             f.maxRetries,
		CheckpointInterval:     f.checkpointEvery,
		RetryBackoff:           2 * time.Second,
	}, coordinator.Dependencies{
		Exists: persist.Exists,
		Dispatch: func(ctx context.Context, cmd messages.Download) {
			natsutil.Publish(ctx, nc, messages.SubjectDownload, cmd)
		},
		Checkpoint: func(ctx context.Context, cp domain.Checkpoint) <-chan error {
			return cpStore.Save(ctx, cp)
		},
	})
	p.coordinator = coord

	// pendingEmbed caches a GenerateEmbeddings batch's chunks by
	// correlation id so the EmbeddingsGenerated handler — which per the
	// catalog carries only embeddings, not chunk content — can zip them
	// back together before writing to the Vector Store and Persistence.
	var pendingMu sync.Mutex
	pendingEmbed := make(map[string][]domain.TextChunk)

	if _, err := natsutil.Subscribe(nc, messages.SubjectDownload, scrapeWorker.Download); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectDownload, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectProcessPDF, pdfWorker.Process); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectProcessPDF, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectDocumentDiscovered, func(ctx context.Context, evt messages.DocumentDiscovered) {
		mDiscovered.Inc()
		if err := coord.HandleDocumentDiscovered(ctx, evt); err != nil {
			log.Error("coordinator: handle document discovered", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectDocumentDiscovered, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectPageDiscovered, func(ctx context.Context, evt messages.PageDiscovered) {
		log.Info("discovery: page discovered",
			"current_page", evt.CurrentPage,
			"total_pages", evt.TotalPages,
			"has_more_pages", evt.HasMorePages,
			"items_found", evt.ItemsFound)
		// The Discovery Worker emits exactly one PageDiscovered per
		// Discover command, after it has already walked every page its
		// configuration allows, so its arrival always means discovery
		// for this run is done — independent of evt.HasMorePages, which
		// only reports whether the upstream site has pages beyond what
		// this command was configured to fetch.
		coord.HandlePageDiscovered(ctx, true)
	}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectPageDiscovered, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectDocumentDownloaded, func(ctx context.Context, evt messages.DocumentDownloaded) {
		mDownloaded.Inc()
		mActiveDownloads.Set(int64(coord.State().ActiveDownloads))
		coord.HandleDocumentDownloaded(ctx, evt)
	}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectDocumentDownloaded, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectWorkerError, func(ctx context.Context, errMsg messages.WorkerErrorMsg) {
		mErrors.Inc()
		coord.HandleWorkerError(ctx, errMsg)
	}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectWorkerError, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectSaveDocument, func(ctx context.Context, cmd messages.SaveDocument) {
		rec := persistence.FromDomain(&cmd.Document)
		if err := persist.Save(ctx, rec); err != nil {
			log.Error("persistence: save document failed", "q_param", cmd.Document.QParam, "error", err)
			return
		}
		if graph != nil {
			doc := cmd.Document
			if err := graph.UpsertDocument(ctx, &doc); err != nil {
				log.Warn("lineage: upsert document failed", "q_param", doc.QParam, "error", err)
			}
			for i := range doc.Reforms {
				if err := graph.UpsertReform(ctx, doc.ID, &doc.Reforms[i]); err != nil {
					log.Warn("lineage: upsert reform failed", "reform_id", doc.Reforms[i].ID, "error", err)
				}
			}
		}
		natsutil.Publish(ctx, nc, messages.SubjectDocumentSaved, messages.DocumentSaved{
			Envelope:   cmd.Envelope,
			DocumentID: cmd.Document.ID,
			QParam:     cmd.Document.QParam,
		})
	}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectSaveDocument, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectPDFProcessed, func(ctx context.Context, evt messages.PDFProcessed) {
		mPDFsProcessed.Inc()
		pendingMu.Lock()
		pendingEmbed[evt.CorrelationID] = evt.Chunks
		pendingMu.Unlock()
		natsutil.Publish(ctx, nc, messages.SubjectGenerateEmbeddings, messages.GenerateEmbeddings{
			Envelope: evt.Envelope,
			Chunks:   evt.Chunks,
		})
	}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectPDFProcessed, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectGenerateEmbeddings, func(ctx context.Context, cmd messages.GenerateEmbeddings) {
		embeddings, err := embed.Embed(ctx, cmd.Chunks)
		if err != nil {
			// Chunker/embedder errors are recoverable per the error
			// taxonomy: the document is already persisted, so missing
			// embeddings can be regenerated later without retrying the
			// whole document.
			log.Warn("embedder: embed failed, document already persisted without embeddings", "correlation_id", cmd.CorrelationID, "error", err)
			pendingMu.Lock()
			delete(pendingEmbed, cmd.CorrelationID)
			pendingMu.Unlock()
			return
		}
		mEmbedBatches.Inc()
		natsutil.Publish(ctx, nc, messages.SubjectEmbeddingsGenerated, messages.EmbeddingsGenerated{
			Envelope:   cmd.Envelope,
			Embeddings: embeddings,
		})
	}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectGenerateEmbeddings, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectEmbeddingsGenerated, func(ctx context.Context, evt messages.EmbeddingsGenerated) {
		pendingMu.Lock()
		chunks := pendingEmbed[evt.CorrelationID]
		delete(pendingEmbed, evt.CorrelationID)
		pendingMu.Unlock()
		if len(chunks) == 0 || len(chunks) != len(evt.Embeddings) {
			log.Warn("embeddings generated with no matching cached chunk batch, dropping", "correlation_id", evt.CorrelationID)
			return
		}
		natsutil.Publish(ctx, nc, messages.SubjectSaveEmbeddings, messages.SaveEmbeddings{
			Envelope:   evt.Envelope,
			Embeddings: evt.Embeddings,
		})
		records := make([]vectorstore.Record, len(chunks))
		for i, c := range chunks {
			records[i] = vectorstore.Record{
				ChunkID:    c.ID,
				DocumentID: c.DocumentID,
				Vector:     evt.Embeddings[i].Vector,
				Content:    c.Content,
			}
		}
		if err := vstore.Add(ctx, records); err != nil {
			log.Error("vectorstore: add failed", "error", err)
		}
		documentID := chunks[0].DocumentID
		chunkRecords := persistence.ChunksFromDomain(documentID, chunks, evt.Embeddings)
		if err := persist.SaveChunks(ctx, documentID, chunkRecords); err != nil {
			log.Error("persistence: save chunks failed", "document_id", documentID, "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectEmbeddingsGenerated, err)
	}
	if _, err := natsutil.Subscribe(nc, messages.SubjectSearchSimilar, func(ctx context.Context, cmd messages.SearchSimilar) {
		hits, err := vstore.Search(ctx, cmd.QueryVector, cmd.TopK, cmd.DocumentID)
		if err != nil {
			log.Error("vectorstore: search failed", "correlation_id", cmd.CorrelationID, "error", err)
			return
		}
		results := make([]messages.VectorSearchResult, len(hits))
		for i, h := range hits {
			results[i] = messages.VectorSearchResult{
				ChunkID:    h.ChunkID,
				DocumentID: h.DocumentID,
				Similarity: h.Similarity,
			}
		}
		natsutil.Publish(ctx, nc, messages.SubjectSearchResults, messages.SearchResults{
			Envelope: cmd.Envelope,
			Results:  results,
		})
	}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectSearchSimilar, err)
	}

	p.bridge = bridge.New(bridge.DefaultConfig(), bridge.Dependencies{
		StartDiscovery: func(ctx context.Context, cmd messages.Discover) {
			coord.StartDiscovery(ctx, cmd.CorrelationID)
			natsutil.Publish(ctx, nc, messages.SubjectDiscover, cmd)
		},
		Pause:    coord.Pause,
		Resume:   coord.Resume,
		GetState: coord.State,
		Logger:   log,
	})
	if _, err := natsutil.Subscribe(nc, messages.SubjectDiscover, disco.Discover); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.SubjectDiscover, err)
	}

	if f.metricsPort > 0 {
		serveMetrics(f.metricsPort, log)
	}

	return p, nil
}

// serveMetrics runs /metrics through the same Recover+Logger middleware
// chain an HTTP-facing service in this codebase would use, rather than
// met.ServeAsync's bare mux.
func serveMetrics(port int, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler())
	handler := mid.Chain(mux, mid.Recover(log), mid.Logger(log))
	go func() {
		addr := fmt.Sprintf(":%d", port)
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// searchConfigFrom translates the CLI's discover flags into the Bridge's
// external SearchConfig shape.
func searchConfigFrom(f discoverFlags) bridge.SearchConfig {
	return bridge.SearchConfig{
		Category:         f.category,
		Scope:            f.scope,
		Status:           f.status,
		DiscoverAllPages: f.allPages,
		MaxPages:         f.maxPages,
	}
}

// progressListener logs each bridge poll tick at Info level, the CLI's
// stand-in for a richer progress UI.
func progressListener(log *slog.Logger) bridge.Listener {
	return bridge.ListenerFunc(func(s bridge.Status) {
		log.Info("progress",
			"session_id", s.SessionID,
			"state", s.State,
			"discovered", s.DiscoveredCount,
			"downloaded", s.DownloadedCount,
			"pending", s.PendingCount,
			"active_downloads", s.ActiveDownloads,
			"errors", s.ErrorCount,
		)
	})
}
