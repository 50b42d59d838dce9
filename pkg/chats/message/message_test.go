package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpc-help/sccbot/pkg/chats/content"
	"github.com/hpc-help/sccbot/pkg/chats/role"
)

func TestNewText(t *testing.T) {
	m := NewText(role.User, "hello")

	assert.Equal(t, role.User, m.Role)
	assert.Equal(t, "hello", m.TextContent())
}

func TestTextContentConcatenates(t *testing.T) {
	m := New(role.Assistant,
		content.Text{Text: "part one "},
		content.ToolCall{ID: "c1", Name: "noop", Arguments: "{}"},
		content.Text{Text: "part two"},
	)

	assert.Equal(t, "part one part two", m.TextContent())
}

func TestToolCalls(t *testing.T) {
	m := New(role.Assistant,
		content.Text{Text: "checking the docs"},
		content.ToolCall{ID: "c1", Name: "retrieve_documents", Arguments: `{"query":"gpu"}`},
		content.ToolCall{ID: "c2", Name: "retrieve_documents", Arguments: `{"query":"mpi"}`},
	)

	calls := m.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Equal(t, "c2", calls[1].ID)
}

func TestToolCallsEmpty(t *testing.T) {
	m := NewText(role.Assistant, "no tools here")

	assert.Empty(t, m.ToolCalls())
}

func TestToolResults(t *testing.T) {
	m := New(role.Tool,
		content.ToolResult{ToolCallID: "c1", Content: "found it"},
	)

	results := m.ToolResults()
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.False(t, results[0].IsError)
}
