package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/middleware/validation"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
)

// StreamEngine is the streaming query mode of the RAG engine.
type StreamEngine interface {
	QueryStream(ctx context.Context, message, sessionID string, onToken func(token string) error) ([]string, error)
}

// streamConn is the slice of *websocket.Conn the handler uses.
type streamConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

type StreamHandler struct {
	engine StreamEngine
}

func NewStreamHandler(engine StreamEngine) *StreamHandler {
	return &StreamHandler{engine: engine}
}

// HandleConnection serves one websocket client. Each query produces token
// events followed by exactly one terminal event: done with sources, or error.
// Tokens already sent before a failure stay sent; no done follows an error.
func (h *StreamHandler) HandleConnection(c *websocket.Conn) {
	h.serve(c)
}

func (h *StreamHandler) serve(c streamConn) {
	defer c.Close()

	logger.Info("Stream connection established")

	for {
		var msg struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			SessionID string `json:"session_id"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Info("Stream connection closed", zap.Error(err))
			return
		}

		if msg.Type != "query" {
			continue
		}

		if strings.TrimSpace(msg.Content) == "" || len(msg.Content) > validation.MaxMessageLength {
			h.writeEvent(c, map[string]any{"type": "error", "error": "Message must be 1-2000 characters"})
			continue
		}

		sessionID := msg.SessionID
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		h.streamQuery(c, msg.Content, sessionID)
	}
}

func (h *StreamHandler) streamQuery(c streamConn, message, sessionID string) {
	// A failed write means the client detached; the returned error stops
	// token production inside the engine.
	sources, err := h.engine.QueryStream(context.Background(), message, sessionID, func(token string) error {
		return h.writeEvent(c, map[string]any{"type": "token", "content": token})
	})
	if err != nil {
		logger.Error("Streaming query failed", zap.Error(err))
		h.writeEvent(c, map[string]any{"type": "error", "error": "Failed to process query"})
		return
	}

	if sources == nil {
		sources = []string{}
	}

	h.writeEvent(c, map[string]any{
		"type":       "done",
		"sources":    sources,
		"session_id": sessionID,
	})
}

func (h *StreamHandler) writeEvent(c streamConn, event map[string]any) error {
	return c.WriteJSON(event)
}
