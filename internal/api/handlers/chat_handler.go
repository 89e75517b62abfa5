package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/middleware/validation"
	"github.com/primesandzooms/chatbot-backend/internal/rag"
	"github.com/primesandzooms/chatbot-backend/internal/storage/models"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
)

// ChatEngine is the blocking query mode of the RAG engine.
type ChatEngine interface {
	Query(ctx context.Context, message, sessionID string) (*rag.QueryResult, error)
}

// HistoryReader serves the chat history endpoint.
type HistoryReader interface {
	GetQueryHistory(sessionID string, limit int) ([]models.QueryRecord, error)
}

type ChatHandler struct {
	engine  ChatEngine
	history HistoryReader
}

func NewChatHandler(engine ChatEngine, history HistoryReader) *ChatHandler {
	return &ChatHandler{engine: engine, history: history}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}
	if len(req.Message) > validation.MaxMessageLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message exceeds maximum length",
		})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	result, err := h.engine.Query(c.Context(), req.Message, sessionID)
	if err != nil {
		logger.Error("Failed to process chat query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(fiber.Map{
		"response":   result.Response,
		"sources":    result.Sources,
		"session_id": sessionID,
	})
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	records, err := h.history.GetQueryHistory(sessionID, c.QueryInt("limit", 20))
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		history = append(history, fiber.Map{
			"id":         rec.ID,
			"message":    rec.QueryText,
			"response":   rec.Response,
			"created_at": rec.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    history,
	})
}
