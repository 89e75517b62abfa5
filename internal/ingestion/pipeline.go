package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/document"
	"github.com/primesandzooms/chatbot-backend/internal/metrics"
	"github.com/primesandzooms/chatbot-backend/internal/storage/models"
	"github.com/primesandzooms/chatbot-backend/internal/vector/milvus"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
	"github.com/primesandzooms/chatbot-backend/pkg/utils"
)

// BatchEmbedder turns chunk texts into vectors, one per input, same order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// RecordUpserter writes embedded chunks into the vector index.
type RecordUpserter interface {
	Upsert(ctx context.Context, records []milvus.Record) error
}

// RunStore logs ingestion runs. Optional; write failures are non-fatal.
type RunStore interface {
	InsertIngestionRun(run *models.IngestionRun) error
}

// Result summarizes one ingestion run for the admin surface.
type Result struct {
	DocumentsIngested int
	ChunksCreated     int
}

// Pipeline runs crawl -> chunk -> embed -> upsert synchronously. Crawl-level
// failures skip pages and continue; embedding or index failures abort the
// run.
type Pipeline struct {
	scraper  *Scraper
	chunker  *Chunker
	embedder BatchEmbedder
	index    RecordUpserter
	runs     RunStore
}

func NewPipeline(scraper *Scraper, chunker *Chunker, embedder BatchEmbedder, index RecordUpserter, runs RunStore) *Pipeline {
	return &Pipeline{
		scraper:  scraper,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		runs:     runs,
	}
}

// Ingest crawls the seed URLs and indexes every chunk. Record ids derive from
// chunk content, so re-ingesting unchanged pages overwrites in place.
func (p *Pipeline) Ingest(ctx context.Context, urls []string, crawlDepth int) (*Result, error) {
	result, err := p.ingest(ctx, urls, crawlDepth)
	p.recordRun(urls, crawlDepth, result, err)
	return result, err
}

func (p *Pipeline) ingest(ctx context.Context, urls []string, crawlDepth int) (*Result, error) {
	docs, err := p.scraper.Scrape(ctx, urls, crawlDepth)
	if err != nil {
		return nil, fmt.Errorf("crawl failed: %w", err)
	}

	chunks := p.chunker.ChunkDocuments(docs)

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Content
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}

		records := make([]milvus.Record, len(chunks))
		now := time.Now().Unix()
		for i, chunk := range chunks {
			records[i] = toRecord(chunk, vectors[i], now)
		}

		if err := p.index.Upsert(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to upsert chunks: %w", err)
		}
	}

	metrics.DocumentsIngested.Add(float64(len(docs)))
	metrics.ChunksCreated.Add(float64(len(chunks)))

	logger.Info("Ingestion run completed",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
	)

	return &Result{DocumentsIngested: len(docs), ChunksCreated: len(chunks)}, nil
}

func toRecord(chunk document.Document, vector []float32, timestamp int64) milvus.Record {
	chunkIndex, _ := chunk.Metadata[document.MetaChunkIndex].(int)
	totalChunks, _ := chunk.Metadata[document.MetaTotalChunks].(int)
	contentType, _ := chunk.Metadata[document.MetaContentType].(string)

	return milvus.Record{
		ID:                 utils.HashString(chunk.Content),
		Vector:             vector,
		Text:               chunk.Content,
		Source:             chunk.Source(),
		Title:              chunk.Title(),
		ContentType:        contentType,
		ChunkIndex:         int64(chunkIndex),
		TotalChunks:        int64(totalChunks),
		IngestionTimestamp: timestamp,
	}
}

func (p *Pipeline) recordRun(urls []string, crawlDepth int, result *Result, runErr error) {
	if p.runs == nil {
		return
	}

	run := &models.IngestionRun{
		ID:         uuid.New().String(),
		SeedURLs:   strings.Join(urls, ","),
		CrawlDepth: crawlDepth,
		Status:     "success",
		CreatedAt:  time.Now(),
	}
	if result != nil {
		run.DocumentsIngested = result.DocumentsIngested
		run.ChunksCreated = result.ChunksCreated
	}
	if runErr != nil {
		run.Status = "error"
		run.ErrorMessage = runErr.Error()
		metrics.IngestionRuns.WithLabelValues("error").Inc()
	} else {
		metrics.IngestionRuns.WithLabelValues("success").Inc()
	}

	if err := p.runs.InsertIngestionRun(run); err != nil {
		logger.Warn("Failed to record ingestion run", zap.Error(err))
	}
}
