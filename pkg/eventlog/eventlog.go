// Package eventlog persists conversation events (user messages, agent
// responses, tool calls, retrievals, errors) to SQLite for offline analysis
// of help-desk sessions.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Type identifies the kind of a logged event.
type Type string

const (
	TypeUserMessage   Type = "user_message"
	TypeAgentResponse Type = "agent_response"
	TypeToolCall      Type = "tool_call"
	TypeToolResponse  Type = "tool_response"
	TypeRetrieval     Type = "retrieval"
	TypeError         Type = "error"
)

// Event is one row of the event log. Tokens is zero when the event carries
// no usage information.
type Event struct {
	ID        int64
	ChatID    string
	Timestamp time.Time
	User      string
	Type      Type
	Tokens    int
	Content   string
}

// Recorder receives conversation events. Implementations must tolerate
// concurrent use; the HTTP server logs from multiple request goroutines.
type Recorder interface {
	Log(ctx context.Context, e Event) error
	History(ctx context.Context, chatID string) ([]Event, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_uuid TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	user TEXT,
	event_type TEXT NOT NULL,
	tokens INTEGER,
	content TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_chat_uuid ON events(chat_uuid);
`

// Store is a SQLite-backed Recorder.
type Store struct {
	pool *sqlitex.Pool
}

// Open creates or opens the event database at path and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{PoolSize: 4})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}

	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("eventlog: take connection: %w", err)
	}
	defer pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		pool.Close()
		return nil, fmt.Errorf("eventlog: apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Log inserts one event. A zero Timestamp is filled with the current time.
func (s *Store) Log(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("eventlog: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO events (chat_uuid, timestamp, user, event_type, tokens, content)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				e.ChatID,
				e.Timestamp.Format(time.RFC3339Nano),
				e.User,
				string(e.Type),
				e.Tokens,
				e.Content,
			},
		})
	if err != nil {
		return fmt.Errorf("eventlog: insert event: %w", err)
	}

	return nil
}

// History returns all events for a chat session in insertion order.
func (s *Store) History(ctx context.Context, chatID string) ([]Event, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventlog: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var events []Event
	err = sqlitex.Execute(conn,
		`SELECT id, chat_uuid, timestamp, user, event_type, tokens, content
		 FROM events
		 WHERE chat_uuid = ?
		 ORDER BY id ASC`,
		&sqlitex.ExecOptions{
			Args: []any{chatID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ts, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(2))
				if err != nil {
					return fmt.Errorf("parse timestamp: %w", err)
				}
				events = append(events, Event{
					ID:        stmt.ColumnInt64(0),
					ChatID:    stmt.ColumnText(1),
					Timestamp: ts,
					User:      stmt.ColumnText(3),
					Type:      Type(stmt.ColumnText(4)),
					Tokens:    stmt.ColumnInt(5),
					Content:   stmt.ColumnText(6),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("eventlog: query history: %w", err)
	}

	return events, nil
}

// Nop is a Recorder that discards everything. Used when event logging is
// disabled in the configuration.
type Nop struct{}

func (Nop) Log(context.Context, Event) error                 { return nil }
func (Nop) History(context.Context, string) ([]Event, error) { return nil, nil }

// UserMessage records a message sent by a user.
func UserMessage(ctx context.Context, r Recorder, chatID, user, text string, tokens int) error {
	return r.Log(ctx, Event{ChatID: chatID, User: user, Type: TypeUserMessage, Content: text, Tokens: tokens})
}

// AgentResponse records the assistant's reply.
func AgentResponse(ctx context.Context, r Recorder, chatID, text string, tokens int) error {
	return r.Log(ctx, Event{ChatID: chatID, Type: TypeAgentResponse, Content: text, Tokens: tokens})
}

// ToolCall records a tool invocation with its JSON arguments.
func ToolCall(ctx context.Context, r Recorder, chatID, tool, arguments string) error {
	content, err := json.Marshal(map[string]string{"tool": tool, "arguments": arguments})
	if err != nil {
		return fmt.Errorf("eventlog: encode tool call: %w", err)
	}
	return r.Log(ctx, Event{ChatID: chatID, Type: TypeToolCall, Content: string(content)})
}

// Retrieval records a retrieval query and its results.
func Retrieval(ctx context.Context, r Recorder, chatID, query string, results any) error {
	content, err := json.Marshal(map[string]any{"query": query, "results": results})
	if err != nil {
		return fmt.Errorf("eventlog: encode retrieval: %w", err)
	}
	return r.Log(ctx, Event{ChatID: chatID, Type: TypeRetrieval, Content: string(content)})
}

// Error records a failure observed during a conversation.
func Error(ctx context.Context, r Recorder, chatID, message string) error {
	return r.Log(ctx, Event{ChatID: chatID, Type: TypeError, Content: message})
}
