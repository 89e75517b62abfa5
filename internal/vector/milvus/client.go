package milvus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/document"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
)

// Record is a chunk's on-disk projection. The id is derived from the chunk
// content, so upserting the same content twice overwrites instead of
// duplicating.
type Record struct {
	ID                 string
	Vector             []float32
	Text               string
	Source             string
	Title              string
	ContentType        string
	ChunkIndex         int64
	TotalChunks        int64
	IngestionTimestamp int64
}

// Stats describes the collection for the admin surface.
type Stats struct {
	TotalRecords   int64
	CollectionName string
	EmbeddingModel string
}

// Client owns one Milvus collection. Searches use cosine similarity; the
// reported score is a higher-is-better relevance clamped to [0,1].
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
	embeddingModel string
}

func NewClient(ctx context.Context, endpoint, apiKey, collectionName string, vectorDim int, embeddingModel string) (*Client, error) {
	var (
		c   client.Client
		err error
	)
	if apiKey != "" {
		c, err = client.NewClient(ctx, client.Config{Address: endpoint, APIKey: apiKey})
	} else {
		c, err = client.NewGrpcClient(ctx, endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
		embeddingModel: embeddingModel,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

// EnsureCollection creates and loads the collection if it does not exist.
func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		// Collections are not loaded automatically after a restart.
		if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
			return fmt.Errorf("failed to load collection: %w", err)
		}
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Primes and Zooms website chunks",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:       "source",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "title",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "content_type",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "total_chunks",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "ingestion_timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index definition: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Upsert writes records keyed by chunk_id. Empty input is a no-op. Records
// with a zero ingestion timestamp get one attached here.
func (m *Client) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().Unix()

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	texts := make([]string, len(records))
	sources := make([]string, len(records))
	titles := make([]string, len(records))
	contentTypes := make([]string, len(records))
	chunkIndexes := make([]int64, len(records))
	totalChunks := make([]int64, len(records))
	timestamps := make([]int64, len(records))

	for i, rec := range records {
		ids[i] = rec.ID
		vectors[i] = rec.Vector
		texts[i] = rec.Text
		sources[i] = rec.Source
		titles[i] = rec.Title
		contentTypes[i] = rec.ContentType
		chunkIndexes[i] = rec.ChunkIndex
		totalChunks[i] = rec.TotalChunks
		if rec.IngestionTimestamp != 0 {
			timestamps[i] = rec.IngestionTimestamp
		} else {
			timestamps[i] = now
		}
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, vectors),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("content_type", contentTypes),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnInt64("total_chunks", totalChunks),
		entity.NewColumnInt64("ingestion_timestamp", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert records: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Records upserted", zap.Int("count", len(records)))

	return nil
}

// Search returns up to k documents ordered by descending relevance, then
// filtered to score >= threshold. An empty collection yields an empty slice.
func (m *Client) Search(ctx context.Context, vector []float32, k int, threshold float32) ([]document.Scored, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResults, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"chunk_id", "text", "source", "title", "content_type", "chunk_index", "total_chunks", "ingestion_timestamp"},
		[]entity.Vector{entity.FloatVector(vector)},
		"embedding",
		entity.COSINE,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]document.Scored, 0, k)
	for _, sr := range searchResults {
		fields := sr.Fields
		hits := collectHits(sr.Scores, k-len(results), threshold, func(i int) document.Document {
			metadata := map[string]any{
				document.MetaSource:             columnString(fields, "source", i),
				document.MetaTitle:              columnString(fields, "title", i),
				document.MetaContentType:        columnString(fields, "content_type", i),
				document.MetaChunkIndex:         columnInt64(fields, "chunk_index", i),
				document.MetaTotalChunks:        columnInt64(fields, "total_chunks", i),
				document.MetaIngestionTimestamp: columnInt64(fields, "ingestion_timestamp", i),
			}
			return document.New(columnString(fields, "text", i), metadata)
		})
		results = append(results, hits...)
	}

	logger.Debug("Vector search completed",
		zap.Int("k", k),
		zap.Float32("threshold", threshold),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Stats reports the live record count and collection identity.
func (m *Client) Stats(ctx context.Context) (*Stats, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.collectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection statistics: %w", err)
	}

	var total int64
	if raw, ok := stats["row_count"]; ok {
		total, _ = strconv.ParseInt(raw, 10, 64)
	}

	return &Stats{
		TotalRecords:   total,
		CollectionName: m.collectionName,
		EmbeddingModel: m.embeddingModel,
	}, nil
}

// Clear drops every record and recreates the empty collection under the same
// name, ready for new upserts.
func (m *Client) Clear(ctx context.Context) error {
	if err := m.client.DropCollection(ctx, m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	if err := m.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}

	logger.Info("Collection cleared", zap.String("collection", m.collectionName))

	return nil
}

// collectHits turns raw cosine scores into relevance-filtered results. Each
// score is clamped to [0,1], hits below threshold are dropped, and at most k
// survive, preserving the incoming descending order.
func collectHits(scores []float32, k int, threshold float32, doc func(i int) document.Document) []document.Scored {
	results := make([]document.Scored, 0, len(scores))
	for i, raw := range scores {
		if len(results) >= k {
			break
		}
		score := clampScore(raw)
		if score < threshold {
			continue
		}
		results = append(results, document.Scored{Document: doc(i), Score: score})
	}
	return results
}

// Milvus returns cosine similarity in [-1,1]; the service-wide convention is
// a relevance score in [0,1], higher is better.
func clampScore(score float32) float32 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func columnString(rs client.ResultSet, name string, idx int) string {
	col := rs.GetColumn(name)
	if col == nil {
		return ""
	}
	val, err := col.Get(idx)
	if err != nil {
		return ""
	}
	s, _ := val.(string)
	return s
}

func columnInt64(rs client.ResultSet, name string, idx int) int64 {
	col := rs.GetColumn(name)
	if col == nil {
		return 0
	}
	val, err := col.Get(idx)
	if err != nil {
		return 0
	}
	n, _ := val.(int64)
	return n
}
