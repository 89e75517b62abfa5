package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/document"
	"github.com/primesandzooms/chatbot-backend/internal/llm"
	"github.com/primesandzooms/chatbot-backend/internal/metrics"
	"github.com/primesandzooms/chatbot-backend/internal/storage/models"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher retrieves the k nearest records above the relevance threshold.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int, threshold float32) ([]document.Scored, error)
}

// Generator produces a completion, blocking or streamed.
type Generator interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
	Stream(ctx context.Context, messages []llm.Message, onToken func(token string) error) error
}

// HistoryStore records answered queries. Optional; writes are best-effort.
type HistoryStore interface {
	InsertQueryRecord(record *models.QueryRecord) error
}

// QueryResult is the blocking-mode answer: the generated response plus the
// deduplicated source URLs behind it.
type QueryResult struct {
	Response string
	Sources  []string
}

// Engine runs one query through retrieve -> assemble -> generate. Each call
// is self-contained; nothing is shared across queries except the injected
// collaborators.
type Engine struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	history   HistoryStore
	topK      int
	threshold float32
}

func NewEngine(embedder Embedder, searcher Searcher, generator Generator, history HistoryStore, topK int, threshold float32) *Engine {
	if topK <= 0 {
		topK = 5
	}

	return &Engine{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		history:   history,
		topK:      topK,
		threshold: threshold,
	}
}

// Query answers a user message and blocks for the full response.
func (e *Engine) Query(ctx context.Context, message, sessionID string) (*QueryResult, error) {
	start := time.Now()

	docs, sources, err := e.retrieve(ctx, message)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	response, err := e.generator.Complete(ctx, buildMessages(docs, message))
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	e.recordQuery(sessionID, message, response, len(sources), time.Since(start))
	metrics.QueryTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.WithLabelValues("blocking").Observe(time.Since(start).Seconds())

	return &QueryResult{Response: response, Sources: sources}, nil
}

// QueryStream answers a user message, forwarding each token to onToken as it
// arrives. On success it returns the deduplicated sources for the terminal
// done event. On error the caller must emit an error event and no done event;
// tokens already delivered are not retracted.
func (e *Engine) QueryStream(ctx context.Context, message, sessionID string, onToken func(token string) error) ([]string, error) {
	start := time.Now()

	docs, sources, err := e.retrieve(ctx, message)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	var response strings.Builder
	err = e.generator.Stream(ctx, buildMessages(docs, message), func(token string) error {
		response.WriteString(token)
		return onToken(token)
	})
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to stream response: %w", err)
	}

	e.recordQuery(sessionID, message, response.String(), len(sources), time.Since(start))
	metrics.QueryTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.WithLabelValues("streaming").Observe(time.Since(start).Seconds())

	return sources, nil
}

// retrieve embeds the message and collects the top-k documents plus their
// deduplicated non-empty source URLs.
func (e *Engine) retrieve(ctx context.Context, message string) ([]document.Document, []string, error) {
	vector, err := e.embedder.Embed(ctx, message)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored, err := e.searcher.Search(ctx, vector, e.topK, e.threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search index: %w", err)
	}

	docs := make([]document.Document, 0, len(scored))
	seen := make(map[string]bool)
	sources := make([]string, 0, len(scored))

	for _, s := range scored {
		docs = append(docs, s.Document)
		if src := s.Document.Source(); src != "" && !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}

	metrics.RetrievalResults.Observe(float64(len(docs)))
	logger.Debug("Retrieval completed",
		zap.Int("results", len(docs)),
		zap.Int("sources", len(sources)),
	)

	return docs, sources, nil
}

func buildMessages(docs []document.Document, question string) []llm.Message {
	context := BuildContext(docs)
	return []llm.Message{
		{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(context, question)},
	}
}

func (e *Engine) recordQuery(sessionID, message, response string, sourceCount int, latency time.Duration) {
	if e.history == nil {
		return
	}

	record := &models.QueryRecord{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		QueryText:   message,
		Response:    response,
		SourceCount: sourceCount,
		LatencyMS:   int(latency.Milliseconds()),
		CreatedAt:   time.Now(),
	}

	if err := e.history.InsertQueryRecord(record); err != nil {
		logger.Warn("Failed to record query history", zap.Error(err))
	}
}
