package httpserver

import (
	"fmt"

	"github.com/hpc-help/sccbot/pkg/chats/content"
	"github.com/hpc-help/sccbot/pkg/chats/message"
	"github.com/hpc-help/sccbot/pkg/chats/role"
)

// WireMessage is the JSON form of a conversation message, mirroring the
// OpenAI chat shape so existing clients can replay histories unchanged.
type WireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// toMessages converts a wire history into the internal form. Unknown roles
// are rejected so a malformed client payload fails fast instead of
// confusing the provider.
func toMessages(wire []WireMessage) ([]message.Message, error) {
	msgs := make([]message.Message, 0, len(wire))
	for i, wm := range wire {
		r := role.Role(wm.Role)
		if !r.Valid() {
			return nil, fmt.Errorf("message %d: unknown role %q", i, wm.Role)
		}

		var parts []content.Part

		if r == role.Tool {
			var text string
			if wm.Content != nil {
				text = *wm.Content
			}
			parts = append(parts, content.ToolResult{ToolCallID: wm.ToolCallID, Content: text})
		} else if wm.Content != nil && *wm.Content != "" {
			parts = append(parts, content.Text{Text: *wm.Content})
		}

		for _, tc := range wm.ToolCalls {
			parts = append(parts, content.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}

		msgs = append(msgs, message.New(r, parts...))
	}

	return msgs, nil
}

// fromMessages converts internal messages to the wire form. An assistant
// message that only carries tool calls gets a null content field, matching
// the OpenAI shape.
func fromMessages(msgs []message.Message) []WireMessage {
	wire := make([]WireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := WireMessage{Role: string(m.Role)}

		if results := m.ToolResults(); len(results) > 0 {
			wm.ToolCallID = results[0].ToolCallID
			text := results[0].Content
			wm.Content = &text
		} else if text := m.TextContent(); text != "" {
			wm.Content = &text
		}

		for _, tc := range m.ToolCalls() {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		wire = append(wire, wm)
	}

	return wire
}
