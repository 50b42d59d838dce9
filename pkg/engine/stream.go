package engine

import (
	"context"
	"fmt"

	"github.com/hpc-help/sccbot/pkg/chats/chat"
	"github.com/hpc-help/sccbot/pkg/chats/message"
	"github.com/hpc-help/sccbot/pkg/modeladapter"
	"github.com/hpc-help/sccbot/pkg/modeladapter/usage"
)

// ExecuteStream runs the conversation loop and delivers the final answer
// incrementally through fn. Tool-resolution rounds are never streamed: the
// loop calls the model with tool definitions until it stops requesting
// tools, then produces the answer.
//
// When the last tool round has been dispatched and the completer supports
// streaming, the final call is made without tools and its deltas flow to fn
// as they arrive. When the model answers without requesting any tool, the
// already-received text is delivered as a single chunk rather than paying
// for a second model call. Streamed completions carry no usage report, so
// Result.Usage covers the non-streamed rounds only.
func (e *Engine) ExecuteStream(ctx context.Context, msgs []message.Message, fn modeladapter.StreamFunc) (Result, error) {
	streamer, canStream := e.completer.(modeladapter.StreamCompleter)
	if !canStream {
		return e.Execute(ctx, msgs)
	}

	msgs = e.ensureSystemMessage(msgs)

	var total usage.TokenCount

	dispatched := false

	for i := 0; i < e.maxIter; i++ {
		msgs = e.trimmer.Trim(msgs)

		if dispatched {
			reply, err := streamer.CompleteStream(ctx, chat.New(msgs...), fn)
			if err != nil {
				return Result{Messages: msgs, Usage: total}, fmt.Errorf("engine: provider stream: %w", err)
			}
			return Result{Messages: append(msgs, reply), Usage: total}, nil
		}

		reply, err := e.complete(ctx, msgs, &total)
		if err != nil {
			return Result{Messages: msgs, Usage: total}, err
		}

		calls := reply.ToolCalls()
		if len(calls) == 0 {
			if err := deliverWhole(reply, fn); err != nil {
				return Result{Messages: append(msgs, reply), Usage: total}, err
			}
			return Result{Messages: append(msgs, reply), Usage: total}, nil
		}

		msgs = append(msgs, reply, e.dispatch(ctx, calls))
		dispatched = true
	}

	e.logger.Warn("iteration cap reached without final answer",
		"max_iterations", e.maxIter,
	)

	return Result{Messages: msgs, Usage: total}, nil
}

// deliverWhole hands an already-complete reply to the stream consumer as one
// text chunk followed by the done marker.
func deliverWhole(reply message.Message, fn modeladapter.StreamFunc) error {
	if text := reply.TextContent(); text != "" {
		if err := fn(modeladapter.StreamChunk{Text: text}); err != nil {
			return fmt.Errorf("engine: stream consumer: %w", err)
		}
	}
	if err := fn(modeladapter.StreamChunk{Done: true}); err != nil {
		return fmt.Errorf("engine: stream consumer: %w", err)
	}
	return nil
}
