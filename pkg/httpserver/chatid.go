package httpserver

import "context"

type chatIDKey struct{}

// WithChatID returns a context carrying the chat session UUID. The chat
// handlers attach it so tool callbacks deep in the engine can attribute
// their event-log entries.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey{}, chatID)
}

// ChatIDFromContext returns the chat session UUID, if any.
func ChatIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(chatIDKey{}).(string)
	return id, ok
}
