// Package toolbox maps tool names to executable handlers and produces the
// tool definitions passed to the LLM provider.
package toolbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hpc-help/sccbot/pkg/chats/content"
)

// ToolBox holds the set of tools a conversation may invoke. Registration is
// fixed at engine construction; a ToolBox is read-only during a conversation
// and therefore safe for concurrent Call use.
type ToolBox struct {
	tools map[string]Tool
	order []string
}

// New creates a ToolBox pre-populated with the given tools.
func New(tools ...Tool) *ToolBox {
	tb := &ToolBox{tools: make(map[string]Tool)}
	tb.Register(tools...)
	return tb
}

// Register adds one or more tools. A tool with an already-registered name
// replaces the previous one.
func (tb *ToolBox) Register(tools ...Tool) {
	for _, t := range tools {
		if _, exists := tb.tools[t.Name]; !exists {
			tb.order = append(tb.order, t.Name)
		}
		tb.tools[t.Name] = t
	}
}

// Get returns a tool by name and a boolean indicating whether it was found.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Tools returns all registered tools in registration order. The slice is the
// definition list sent with every provider call.
func (tb *ToolBox) Tools() []Tool {
	result := make([]Tool, 0, len(tb.order))
	for _, name := range tb.order {
		result = append(result, tb.tools[name])
	}
	return result
}

// Call executes a tool call and returns a ToolResult. An unknown tool name,
// malformed arguments, or a handler error all produce a ToolResult with
// IsError set — never an error that would abort the conversation.
func (tb *ToolBox) Call(ctx context.Context, tc content.ToolCall) content.ToolResult {
	t, ok := tb.tools[tc.Name]
	if !ok {
		return content.ToolResult{
			ToolCallID: tc.ID,
			Content:    fmt.Sprintf("tool not found: %s", tc.Name),
			IsError:    true,
		}
	}

	if !json.Valid([]byte(tc.Arguments)) {
		return content.ToolResult{
			ToolCallID: tc.ID,
			Content:    fmt.Sprintf("invalid tool arguments for %s: not valid JSON", tc.Name),
			IsError:    true,
		}
	}

	result, err := t.Handler(ctx, json.RawMessage(tc.Arguments))
	if err != nil {
		return content.ToolResult{
			ToolCallID: tc.ID,
			Content:    err.Error(),
			IsError:    true,
		}
	}

	return content.ToolResult{
		ToolCallID: tc.ID,
		Content:    result,
	}
}
