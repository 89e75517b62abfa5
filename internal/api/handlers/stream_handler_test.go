package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreamEngine struct {
	tokens     []string
	sources    []string
	err        error
	gotMessage string
	gotSession string
}

func (f *fakeStreamEngine) QueryStream(_ context.Context, message, sessionID string, onToken func(string) error) ([]string, error) {
	f.gotMessage = message
	f.gotSession = sessionID
	for _, tok := range f.tokens {
		if err := onToken(tok); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.sources, nil
}

// fakeConn feeds scripted inbound messages and records outbound events.
type fakeConn struct {
	inbound []string
	events  []map[string]any
	closed  bool
}

func (f *fakeConn) ReadJSON(v any) error {
	if len(f.inbound) == 0 {
		return io.EOF
	}
	msg := f.inbound[0]
	f.inbound = f.inbound[1:]
	return json.Unmarshal([]byte(msg), v)
}

func (f *fakeConn) WriteJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil {
		return err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func eventTypes(events []map[string]any) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e["type"].(string))
	}
	return types
}

func TestServe_TokensThenDone(t *testing.T) {
	engine := &fakeStreamEngine{
		tokens:  []string{"Tripods ", "start ", "at 200."},
		sources: []string{"https://primesandzooms.com/tripods"},
	}
	conn := &fakeConn{inbound: []string{
		`{"type":"query","content":"tripod pricing?","session_id":"session-9"}`,
	}}

	NewStreamHandler(engine).serve(conn)

	require.Equal(t, []string{"token", "token", "token", "done"}, eventTypes(conn.events))
	assert.Equal(t, "Tripods ", conn.events[0]["content"])

	done := conn.events[3]
	assert.Equal(t, []any{"https://primesandzooms.com/tripods"}, done["sources"])
	assert.Equal(t, "session-9", done["session_id"])

	assert.Equal(t, "tripod pricing?", engine.gotMessage)
	assert.Equal(t, "session-9", engine.gotSession)
	assert.True(t, conn.closed)
}

func TestServe_ErrorEndsWithoutDone(t *testing.T) {
	engine := &fakeStreamEngine{
		tokens: []string{"partial "},
		err:    errors.New("provider timeout"),
	}
	conn := &fakeConn{inbound: []string{
		`{"type":"query","content":"hello"}`,
	}}

	NewStreamHandler(engine).serve(conn)

	assert.Equal(t, []string{"token", "error"}, eventTypes(conn.events))
}

func TestServe_EmptySourcesSerializeAsEmptyList(t *testing.T) {
	engine := &fakeStreamEngine{tokens: []string{"ok"}}
	conn := &fakeConn{inbound: []string{
		`{"type":"query","content":"hello"}`,
	}}

	NewStreamHandler(engine).serve(conn)

	done := conn.events[len(conn.events)-1]
	require.Equal(t, "done", done["type"])
	assert.Equal(t, []any{}, done["sources"])
}

func TestServe_GeneratesSessionID(t *testing.T) {
	engine := &fakeStreamEngine{}
	conn := &fakeConn{inbound: []string{
		`{"type":"query","content":"hello"}`,
	}}

	NewStreamHandler(engine).serve(conn)

	assert.NotEmpty(t, engine.gotSession)
	done := conn.events[len(conn.events)-1]
	assert.Equal(t, engine.gotSession, done["session_id"])
}

func TestServe_IgnoresNonQueryMessages(t *testing.T) {
	engine := &fakeStreamEngine{}
	conn := &fakeConn{inbound: []string{
		`{"type":"ping"}`,
		`{"type":"query","content":"hello"}`,
	}}

	NewStreamHandler(engine).serve(conn)

	assert.Equal(t, "hello", engine.gotMessage)
	assert.Equal(t, []string{"done"}, eventTypes(conn.events))
}

func TestServe_RejectsInvalidContent(t *testing.T) {
	engine := &fakeStreamEngine{}
	conn := &fakeConn{inbound: []string{
		`{"type":"query","content":"   "}`,
		`{"type":"query","content":"` + strings.Repeat("a", 2001) + `"}`,
	}}

	NewStreamHandler(engine).serve(conn)

	assert.Equal(t, []string{"error", "error"}, eventTypes(conn.events))
	assert.Empty(t, engine.gotMessage)
}
