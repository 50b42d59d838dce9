// Package engine runs the agentic tool-calling conversation loop: it issues
// LLM calls, dispatches requested tool calls, stitches results back into the
// conversation, bounds the history against a token budget, and iterates
// until a final answer or the iteration cap.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hpc-help/sccbot/pkg/chats/chat"
	"github.com/hpc-help/sccbot/pkg/chats/content"
	"github.com/hpc-help/sccbot/pkg/chats/message"
	"github.com/hpc-help/sccbot/pkg/chats/role"
	"github.com/hpc-help/sccbot/pkg/contextwindow"
	"github.com/hpc-help/sccbot/pkg/modeladapter"
	"github.com/hpc-help/sccbot/pkg/modeladapter/usage"
	"github.com/hpc-help/sccbot/pkg/tools/toolbox"
)

// DefaultMaxIterations bounds the number of model calls per Execute.
const DefaultMaxIterations = 5

// Engine orchestrates one conversation turn. Its configuration is fixed at
// construction; Execute holds all per-call state on the stack, so a single
// Engine serves concurrent independent conversations.
type Engine struct {
	completer modeladapter.Completer
	tools     *toolbox.ToolBox
	trimmer   *contextwindow.Trimmer
	prompt    string
	maxIter   int
	logger    *slog.Logger
}

// Options configures an Engine.
type Options struct {
	SystemPrompt  string // Prepended when the caller's history lacks one.
	MaxIterations int    // Model calls per Execute (0 = DefaultMaxIterations).
	Logger        *slog.Logger
}

// New creates an Engine. The completer, toolbox, and trimmer are required
// collaborators owned by the composition root.
func New(completer modeladapter.Completer, tools *toolbox.ToolBox, trimmer *contextwindow.Trimmer, opts Options) *Engine {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		completer: completer,
		tools:     tools,
		trimmer:   trimmer,
		prompt:    opts.SystemPrompt,
		maxIter:   opts.MaxIterations,
		logger:    opts.Logger,
	}
}

// Result is the outcome of one Execute call: the full updated history and
// the token usage accumulated across all iterations.
type Result struct {
	Messages []message.Message
	Usage    usage.TokenCount
}

// Execute runs the conversation loop over the caller's history. Tool-level
// failures (bad arguments, unknown tool, handler error) become tool-result
// messages and the loop continues; a provider failure propagates with the
// history accumulated so far intact in the returned Result. Hitting the
// iteration cap returns the history as-is with a logged warning — the last
// assistant message may then carry an unanswered tool call.
func (e *Engine) Execute(ctx context.Context, msgs []message.Message) (Result, error) {
	msgs = e.ensureSystemMessage(msgs)

	var total usage.TokenCount

	for i := 0; i < e.maxIter; i++ {
		msgs = e.trimmer.Trim(msgs)

		reply, err := e.complete(ctx, msgs, &total)
		if err != nil {
			return Result{Messages: msgs, Usage: total}, err
		}

		msgs = append(msgs, reply)

		calls := reply.ToolCalls()
		if len(calls) == 0 {
			return Result{Messages: msgs, Usage: total}, nil
		}

		msgs = append(msgs, e.dispatch(ctx, calls))
	}

	e.logger.Warn("iteration cap reached without final answer",
		"max_iterations", e.maxIter,
	)

	return Result{Messages: msgs, Usage: total}, nil
}

// complete performs one model call with the full tool definition list and
// accumulates its reported usage. The usage must come from the call's own
// return value: Execute runs concurrently for independent conversations, so
// reading a tracker shared across calls would attribute one conversation's
// tokens to another.
func (e *Engine) complete(ctx context.Context, msgs []message.Message, total *usage.TokenCount) (message.Message, error) {
	uc, reportsUsage := e.completer.(modeladapter.UsageCompleter)
	if !reportsUsage {
		reply, err := e.completer.Complete(ctx, chat.New(msgs...), e.tools.Tools())
		if err != nil {
			return message.Message{}, fmt.Errorf("engine: provider call: %w", err)
		}
		return reply, nil
	}

	reply, count, err := uc.CompleteWithUsage(ctx, chat.New(msgs...), e.tools.Tools())
	if err != nil {
		return message.Message{}, fmt.Errorf("engine: provider call: %w", err)
	}

	total.PromptTokens += count.PromptTokens
	total.CompletionTokens += count.CompletionTokens

	return reply, nil
}

// dispatch executes the first requested tool call and wraps its result in a
// tool-role message. Only the first call is dispatched per iteration even
// when the model asks for several; the model re-requests any remaining work
// on the next iteration.
func (e *Engine) dispatch(ctx context.Context, calls []content.ToolCall) message.Message {
	if len(calls) > 1 {
		e.logger.Warn("model requested multiple tool calls, dispatching first only",
			"requested", len(calls),
		)
	}

	tc := calls[0]
	e.logger.Info("dispatching tool call", "tool", tc.Name, "id", tc.ID)

	result := e.tools.Call(ctx, tc)
	if result.IsError {
		e.logger.Warn("tool call failed", "tool", tc.Name, "id", tc.ID, "error", result.Content)
	}

	return message.New(role.Tool, result)
}

// ensureSystemMessage guarantees exactly one system message at index 0. A
// caller-provided system message is respected, never duplicated.
func (e *Engine) ensureSystemMessage(msgs []message.Message) []message.Message {
	if len(msgs) > 0 && msgs[0].Role == role.System {
		return msgs
	}

	withSystem := make([]message.Message, 0, len(msgs)+1)
	withSystem = append(withSystem, message.NewText(role.System, e.prompt))
	return append(withSystem, msgs...)
}
