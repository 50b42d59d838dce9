package modeladapter

import (
	"context"

	"github.com/hpc-help/sccbot/pkg/chats/chat"
	"github.com/hpc-help/sccbot/pkg/chats/message"
)

// StreamChunk is a tagged variant produced by streaming adapters. Exactly one
// interpretation applies: Done false carries a content delta in Text; Done
// true marks the end of the stream and Text is empty. Provider-specific chunk
// shapes are normalized to this type at the adapter boundary so consumers
// stay shape-agnostic.
type StreamChunk struct {
	Text string
	Done bool
}

// StreamFunc receives stream chunks in arrival order. Returning an error
// stops delivery to the consumer, but the adapter still drains the stream so
// the full accumulated text reaches the conversation history.
type StreamFunc func(chunk StreamChunk) error

// StreamCompleter is implemented by adapters that can deliver the assistant
// reply incrementally. The returned message carries the full accumulated
// text regardless of how delivery ended.
type StreamCompleter interface {
	CompleteStream(ctx context.Context, c *chat.Chat, fn StreamFunc) (message.Message, error)
}
