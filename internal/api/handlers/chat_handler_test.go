package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primesandzooms/chatbot-backend/internal/rag"
	"github.com/primesandzooms/chatbot-backend/internal/storage/models"
)

type fakeChatEngine struct {
	result     *rag.QueryResult
	err        error
	gotMessage string
	gotSession string
}

func (f *fakeChatEngine) Query(_ context.Context, message, sessionID string) (*rag.QueryResult, error) {
	f.gotMessage = message
	f.gotSession = sessionID
	return f.result, f.err
}

type fakeHistoryReader struct {
	records    []models.QueryRecord
	err        error
	gotSession string
	gotLimit   int
}

func (f *fakeHistoryReader) GetQueryHistory(sessionID string, limit int) ([]models.QueryRecord, error) {
	f.gotSession = sessionID
	f.gotLimit = limit
	return f.records, f.err
}

func newChatApp(engine ChatEngine, history HistoryReader) *fiber.App {
	app := fiber.New()
	h := NewChatHandler(engine, history)
	app.Post("/api/v1/chat", h.HandleChat)
	app.Get("/api/v1/chat/history", h.GetHistory)
	return app
}

func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	resp, err := app.Test(jsonRequest(t, path, body), -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHandleChat_Success(t *testing.T) {
	engine := &fakeChatEngine{result: &rag.QueryResult{
		Response: "Yes, we stock the RF 70-200mm f/2.8.",
		Sources:  []string{"https://primesandzooms.com/lenses"},
	}}
	app := newChatApp(engine, &fakeHistoryReader{})

	resp := postJSON(t, app, "/api/v1/chat", map[string]any{
		"message":    "do you have the 70-200?",
		"session_id": "session-42",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "Yes, we stock the RF 70-200mm f/2.8.", body["response"])
	assert.Equal(t, "session-42", body["session_id"])
	assert.Equal(t, []any{"https://primesandzooms.com/lenses"}, body["sources"])

	assert.Equal(t, "do you have the 70-200?", engine.gotMessage)
	assert.Equal(t, "session-42", engine.gotSession)
}

func TestHandleChat_GeneratesSessionID(t *testing.T) {
	engine := &fakeChatEngine{result: &rag.QueryResult{Response: "ok"}}
	app := newChatApp(engine, &fakeHistoryReader{})

	resp := postJSON(t, app, "/api/v1/chat", map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	sessionID, ok := body["session_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, sessionID)
	assert.Equal(t, sessionID, engine.gotSession)
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	app := newChatApp(&fakeChatEngine{}, &fakeHistoryReader{})

	resp := postJSON(t, app, "/api/v1/chat", map[string]any{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleChat_MessageTooLong(t *testing.T) {
	app := newChatApp(&fakeChatEngine{}, &fakeHistoryReader{})

	resp := postJSON(t, app, "/api/v1/chat", map[string]any{
		"message": strings.Repeat("a", 2001),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleChat_EngineError(t *testing.T) {
	engine := &fakeChatEngine{err: errors.New("milvus unreachable")}
	app := newChatApp(engine, &fakeHistoryReader{})

	resp := postJSON(t, app, "/api/v1/chat", map[string]any{"message": "hello"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "Failed to process query", body["error"])
}

func TestGetHistory_Success(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistoryReader{records: []models.QueryRecord{
		{ID: "rec-1", QueryText: "tripod rates?", Response: "From 200 rupees.", CreatedAt: created},
	}}
	app := newChatApp(&fakeChatEngine{}, history)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history?session_id=session-42&limit=5", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "session-42", history.gotSession)
	assert.Equal(t, 5, history.gotLimit)

	body := decodeJSON(t, resp)
	entries, ok := body["history"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)

	entry := entries[0].(map[string]any)
	assert.Equal(t, "rec-1", entry["id"])
	assert.Equal(t, "tripod rates?", entry["message"])
	assert.Equal(t, float64(created.Unix()), entry["created_at"])
}

func TestGetHistory_MissingSessionID(t *testing.T) {
	app := newChatApp(&fakeChatEngine{}, &fakeHistoryReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetHistory_DefaultLimit(t *testing.T) {
	history := &fakeHistoryReader{}
	app := newChatApp(&fakeChatEngine{}, history)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history?session_id=s", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 20, history.gotLimit)
}
