// Package content defines the content parts that make up chat messages.
package content

// Part is a piece of content within a message.
type Part interface {
	PartKind() string
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// ToolCall represents an assistant's request to invoke a tool.
// Arguments holds the raw JSON string exactly as the provider produced it;
// it is decoded only at dispatch time.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

func (tc ToolCall) PartKind() string { return "tool_call" }

// ToolResult holds the output of a tool invocation. IsError marks results
// synthesized from a failed dispatch (bad arguments, unknown tool, or a
// handler error); the conversation continues either way.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

func (tr ToolResult) PartKind() string { return "tool_result" }
