package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpc-help/sccbot/pkg/chats/content"
	"github.com/hpc-help/sccbot/pkg/chats/message"
	"github.com/hpc-help/sccbot/pkg/chats/role"
	"github.com/hpc-help/sccbot/pkg/engine"
	"github.com/hpc-help/sccbot/pkg/eventlog"
	"github.com/hpc-help/sccbot/pkg/modeladapter"
	"github.com/hpc-help/sccbot/pkg/modeladapter/usage"
	"github.com/hpc-help/sccbot/pkg/session"
)

// fakeRunner returns a canned turn outcome and records what it received.
type fakeRunner struct {
	reply   string
	err     error
	chunks  []string
	gotMsgs []message.Message
}

func (f *fakeRunner) result(msgs []message.Message) engine.Result {
	out := append([]message.Message{message.NewText(role.System, "prompt")}, msgs...)
	out = append(out,
		message.New(role.Assistant, content.ToolCall{ID: "call_1", Name: "retrieve_documents", Arguments: `{"query":"q"}`}),
		message.New(role.Tool, content.ToolResult{ToolCallID: "call_1", Content: "docs"}),
		message.NewText(role.Assistant, f.reply),
	)
	return engine.Result{
		Messages: out,
		Usage:    usage.TokenCount{PromptTokens: 20, CompletionTokens: 10},
	}
}

func (f *fakeRunner) Execute(_ context.Context, msgs []message.Message) (engine.Result, error) {
	f.gotMsgs = msgs
	if f.err != nil {
		return engine.Result{}, f.err
	}
	return f.result(msgs), nil
}

func (f *fakeRunner) ExecuteStream(_ context.Context, msgs []message.Message, fn modeladapter.StreamFunc) (engine.Result, error) {
	f.gotMsgs = msgs
	if f.err != nil {
		return engine.Result{}, f.err
	}
	for _, c := range f.chunks {
		if err := fn(modeladapter.StreamChunk{Text: c}); err != nil {
			return engine.Result{}, err
		}
	}
	if err := fn(modeladapter.StreamChunk{Done: true}); err != nil {
		return engine.Result{}, err
	}
	return f.result(msgs), nil
}

// memoryRecorder captures events in order.
type memoryRecorder struct {
	events []eventlog.Event
}

func (m *memoryRecorder) Log(_ context.Context, e eventlog.Event) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memoryRecorder) History(context.Context, string) ([]eventlog.Event, error) {
	return m.events, nil
}

func (m *memoryRecorder) types() []eventlog.Type {
	out := make([]eventlog.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestServer(runner Runner, rec eventlog.Recorder) (*Server, *session.Issuer) {
	issuer := session.New("test-secret", time.Hour)
	return New(Config{Runner: runner, Sessions: issuer, Events: rec}), issuer
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func startSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := postJSON(t, h, "/session", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(&fakeRunner{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, w.Body.String())
}

func TestSessionIssuesVerifiableToken(t *testing.T) {
	rec := &memoryRecorder{}
	srv, issuer := newTestServer(&fakeRunner{}, rec)

	token := startSession(t, srv)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ChatID)

	// Session start is recorded.
	require.Len(t, rec.events, 1)
	assert.Equal(t, claims.ChatID, rec.events[0].ChatID)
	assert.Contains(t, rec.events[0].Content, "session_start")
}

func TestSessionRequiresUsername(t *testing.T) {
	srv, _ := newTestServer(&fakeRunner{}, nil)

	w := postJSON(t, srv, "/session", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username is required")
}

func TestChatNonStreaming(t *testing.T) {
	rec := &memoryRecorder{}
	runner := &fakeRunner{reply: "Use qsub to submit jobs."}
	srv, _ := newTestServer(runner, rec)
	token := startSession(t, srv)

	w := postJSON(t, srv, "/chat", chatRequest{
		Token: token,
		Messages: []WireMessage{
			{Role: "user", Content: strPtr("How do I submit a job?")},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	final := resp.Messages[len(resp.Messages)-1]
	assert.Equal(t, "assistant", final.Role)
	require.NotNil(t, final.Content)
	assert.Equal(t, "Use qsub to submit jobs.", *final.Content)

	assert.Equal(t, 20, resp.Usage.PromptTokens)
	assert.Equal(t, 10, resp.Usage.CompletionTokens)
	assert.Equal(t, 30, resp.Usage.TotalTokens)

	// The runner saw the converted history, not wire JSON.
	require.Len(t, runner.gotMsgs, 1)
	assert.Equal(t, role.User, runner.gotMsgs[0].Role)

	assert.Equal(t, []eventlog.Type{
		eventlog.TypeUserMessage, // session_start
		eventlog.TypeUserMessage,
		eventlog.TypeToolCall,
		eventlog.TypeAgentResponse,
	}, rec.types())
	assert.Equal(t, 10, rec.events[len(rec.events)-1].Tokens)
}

func TestChatRoundTripsToolMessages(t *testing.T) {
	runner := &fakeRunner{reply: "ok"}
	srv, _ := newTestServer(runner, nil)
	token := startSession(t, srv)

	w := postJSON(t, srv, "/chat", chatRequest{
		Token: token,
		Messages: []WireMessage{
			{Role: "user", Content: strPtr("q")},
			{Role: "assistant", ToolCalls: []wireToolCall{{
				ID:       "call_9",
				Type:     "function",
				Function: wireFunction{Name: "retrieve_documents", Arguments: `{"query":"x"}`},
			}}},
			{Role: "tool", ToolCallID: "call_9", Content: strPtr("docs")},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, runner.gotMsgs, 3)

	calls := runner.gotMsgs[1].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_9", calls[0].ID)

	results := runner.gotMsgs[2].ToolResults()
	require.Len(t, results, 1)
	assert.Equal(t, "call_9", results[0].ToolCallID)
	assert.Equal(t, "docs", results[0].Content)
}

func TestChatRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(&fakeRunner{}, nil)

	w := postJSON(t, srv, "/chat", chatRequest{
		Token:    "garbage",
		Messages: []WireMessage{{Role: "user", Content: strPtr("hi")}},
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "detail")
}

func TestChatRejectsUnknownRole(t *testing.T) {
	srv, _ := newTestServer(&fakeRunner{}, nil)
	token := startSession(t, srv)

	w := postJSON(t, srv, "/chat", chatRequest{
		Token:    token,
		Messages: []WireMessage{{Role: "wizard", Content: strPtr("hi")}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown role")
}

func TestChatRejectsEmptyHistory(t *testing.T) {
	srv, _ := newTestServer(&fakeRunner{}, nil)
	token := startSession(t, srv)

	w := postJSON(t, srv, "/chat", chatRequest{Token: token})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatRunnerFailure(t *testing.T) {
	rec := &memoryRecorder{}
	srv, _ := newTestServer(&fakeRunner{err: errors.New("provider down")}, rec)
	token := startSession(t, srv)

	w := postJSON(t, srv, "/chat", chatRequest{
		Token:    token,
		Messages: []WireMessage{{Role: "user", Content: strPtr("hi")}},
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "provider down")

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, eventlog.TypeError, last.Type)
	assert.Contains(t, last.Content, "provider down")
}

func TestChatStreaming(t *testing.T) {
	rec := &memoryRecorder{}
	runner := &fakeRunner{reply: "Use qsub.", chunks: []string{"Use ", "qsub."}}
	srv, _ := newTestServer(runner, rec)
	token := startSession(t, srv)

	w := postJSON(t, srv, "/chat", chatRequest{
		Token:    token,
		Messages: []WireMessage{{Role: "user", Content: strPtr("how?")}},
		Stream:   true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	lines := strings.Split(strings.TrimSpace(body), "\n\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `data: {"content":"Use "}`, lines[0])
	assert.Equal(t, `data: {"content":"qsub."}`, lines[1])
	assert.Equal(t, "data: [DONE]", lines[2])

	// The full response is still event-logged after streaming.
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, eventlog.TypeAgentResponse, last.Type)
	assert.Equal(t, "Use qsub.", last.Content)
}

func strPtr(s string) *string { return &s }
