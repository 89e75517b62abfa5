package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/ingestion"
	"github.com/primesandzooms/chatbot-backend/internal/middleware/validation"
	"github.com/primesandzooms/chatbot-backend/internal/vector/milvus"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
)

// Ingester runs one crawl-and-index pass.
type Ingester interface {
	Ingest(ctx context.Context, urls []string, crawlDepth int) (*ingestion.Result, error)
}

// IndexAdmin exposes the vector index's admin operations.
type IndexAdmin interface {
	Stats(ctx context.Context) (*milvus.Stats, error)
	Clear(ctx context.Context) error
}

type AdminHandler struct {
	pipeline Ingester
	index    IndexAdmin
}

func NewAdminHandler(pipeline Ingester, index IndexAdmin) *AdminHandler {
	return &AdminHandler{pipeline: pipeline, index: index}
}

func (h *AdminHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		URLs       []string `json:"urls"`
		CrawlDepth int      `json:"crawl_depth"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.URLs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one URL is required",
		})
	}

	if req.CrawlDepth == 0 {
		req.CrawlDepth = 1
	}
	if req.CrawlDepth < validation.MinCrawlDepth || req.CrawlDepth > validation.MaxCrawlDepth {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "crawl_depth must be between 1 and 3",
		})
	}

	result, err := h.pipeline.Ingest(c.Context(), req.URLs, req.CrawlDepth)
	if err != nil {
		logger.Error("Ingestion run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Ingestion failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":             "success",
		"documents_ingested": result.DocumentsIngested,
		"chunks_created":     result.ChunksCreated,
	})
}

func (h *AdminHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.index.Stats(c.Context())
	if err != nil {
		logger.Error("Failed to load index stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stats",
		})
	}

	return c.JSON(fiber.Map{
		"total_documents": stats.TotalRecords,
		"collection_name": stats.CollectionName,
		"embedding_model": stats.EmbeddingModel,
	})
}

func (h *AdminHandler) HandleClear(c *fiber.Ctx) error {
	if err := h.index.Clear(c.Context()); err != nil {
		logger.Error("Failed to clear index", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear index",
		})
	}

	logger.Info("Vector index cleared via admin endpoint")

	return c.JSON(fiber.Map{
		"status": "cleared",
	})
}
