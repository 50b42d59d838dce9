// Package httpserver exposes the chatbot over HTTP: session issuance, a
// chat endpoint with optional SSE streaming, and a health check. Every
// conversation turn is recorded in the event log.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hpc-help/sccbot/pkg/chats/message"
	"github.com/hpc-help/sccbot/pkg/chats/role"
	"github.com/hpc-help/sccbot/pkg/engine"
	"github.com/hpc-help/sccbot/pkg/eventlog"
	"github.com/hpc-help/sccbot/pkg/modeladapter"
	"github.com/hpc-help/sccbot/pkg/session"
	"github.com/hpc-help/sccbot/pkg/tokens"
)

// Runner runs one conversation turn. Satisfied by *engine.Engine.
type Runner interface {
	Execute(ctx context.Context, msgs []message.Message) (engine.Result, error)
	ExecuteStream(ctx context.Context, msgs []message.Message, fn modeladapter.StreamFunc) (engine.Result, error)
}

// Config wires a Server's collaborators.
type Config struct {
	Runner    Runner
	Sessions  *session.Issuer
	Events    eventlog.Recorder
	Estimator tokens.Estimator
	Logger    *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	runner   Runner
	sessions *session.Issuer
	events   eventlog.Recorder
	est      tokens.Estimator
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Server. Events defaults to a no-op recorder, Estimator to
// the word-count heuristic, and Logger to discard.
func New(cfg Config) *Server {
	if cfg.Events == nil {
		cfg.Events = eventlog.Nop{}
	}
	if cfg.Estimator == nil {
		cfg.Estimator = tokens.Heuristic{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		runner:   cfg.Runner,
		sessions: cfg.Sessions,
		events:   cfg.Events,
		est:      cfg.Estimator,
		logger:   cfg.Logger,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /session", s.handleSession)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type sessionRequest struct {
	Username string `json:"username"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Username == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("username is required"))
		return
	}

	token, chatID, err := s.sessions.Issue(req.Username)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.events.Log(r.Context(), eventlog.Event{
		ChatID:  chatID,
		User:    req.Username,
		Type:    eventlog.TypeUserMessage,
		Content: `{"event": "session_start"}`,
	}); err != nil {
		s.logger.Warn("event log write failed", "error", err)
	}

	s.logger.Info("session started", "user", req.Username, "chat_id", chatID)
	s.writeJSON(w, http.StatusOK, sessionResponse{Token: token})
}

type chatRequest struct {
	Token    string        `json:"token"`
	Messages []WireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Messages []WireMessage `json:"messages"`
	Usage    usageResponse `json:"usage"`
}

type usageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	claims, err := s.sessions.Verify(req.Token)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	msgs, err := toMessages(req.Messages)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(msgs) == 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("messages must not be empty"))
		return
	}

	ctx := WithChatID(r.Context(), claims.ChatID)

	s.logIncoming(ctx, claims, msgs)

	if req.Stream {
		s.streamChat(w, r.WithContext(ctx), claims, msgs)
		return
	}

	res, err := s.runner.Execute(ctx, msgs)
	if err != nil {
		s.logConversationError(ctx, claims.ChatID, err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.logOutcome(ctx, claims.ChatID, msgs, res)

	s.writeJSON(w, http.StatusOK, chatResponse{
		Messages: fromMessages(res.Messages),
		Usage: usageResponse{
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			TotalTokens:      res.Usage.Total(),
		},
	})
}

// streamChat runs the turn with SSE delivery: one data event per content
// delta, then a [DONE] marker. The complete response is still written to
// the event log after the stream ends.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, claims session.Claims, msgs []message.Message) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	started := false
	fn := func(chunk modeladapter.StreamChunk) error {
		if chunk.Done {
			return nil
		}
		started = true

		payload, err := json.Marshal(map[string]string{"content": chunk.Text})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	res, err := s.runner.ExecuteStream(r.Context(), msgs, fn)
	if err != nil {
		s.logConversationError(r.Context(), claims.ChatID, err)
		if !started {
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	s.logOutcome(r.Context(), claims.ChatID, msgs, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// logIncoming records the newest user message with its token estimate.
func (s *Server) logIncoming(ctx context.Context, claims session.Claims, msgs []message.Message) {
	last := msgs[len(msgs)-1]
	if last.Role != role.User {
		return
	}

	text := last.TextContent()
	if err := eventlog.UserMessage(ctx, s.events, claims.ChatID, claims.Username, text, s.est.EstimateText(text)); err != nil {
		s.logger.Warn("event log write failed", "error", err)
	}
}

// logOutcome records the tool calls and the assistant response produced by
// one conversation turn. Only messages appended beyond the request history
// are considered.
func (s *Server) logOutcome(ctx context.Context, chatID string, in []message.Message, res engine.Result) {
	start := len(in)
	if len(res.Messages) > 0 && res.Messages[0].Role == role.System &&
		(len(in) == 0 || in[0].Role != role.System) {
		start++ // the engine prepended its system message
	}
	if start > len(res.Messages) {
		start = len(res.Messages)
	}
	appended := res.Messages[start:]

	for _, m := range appended {
		for _, tc := range m.ToolCalls() {
			if err := eventlog.ToolCall(ctx, s.events, chatID, tc.Name, tc.Arguments); err != nil {
				s.logger.Warn("event log write failed", "error", err)
			}
		}
	}

	if len(res.Messages) == 0 {
		return
	}
	final := res.Messages[len(res.Messages)-1]
	if final.Role != role.Assistant {
		return
	}

	text := final.TextContent()
	tokenCount := res.Usage.CompletionTokens
	if tokenCount == 0 {
		tokenCount = s.est.EstimateText(text)
	}
	if err := eventlog.AgentResponse(ctx, s.events, chatID, text, tokenCount); err != nil {
		s.logger.Warn("event log write failed", "error", err)
	}
}

func (s *Server) logConversationError(ctx context.Context, chatID string, err error) {
	s.logger.Error("conversation failed", "chat_id", chatID, "error", err)
	if logErr := eventlog.Error(ctx, s.events, chatID, err.Error()); logErr != nil {
		s.logger.Warn("event log write failed", "error", logErr)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response write failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"detail": err.Error()})
}
