// Package openai provides a Completer implementation for OpenAI-compatible
// Chat Completions APIs, including the GitHub Models inference endpoint the
// help desk runs against.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hpc-help/sccbot/pkg/chats/chat"
	"github.com/hpc-help/sccbot/pkg/chats/content"
	"github.com/hpc-help/sccbot/pkg/chats/message"
	"github.com/hpc-help/sccbot/pkg/chats/role"
	"github.com/hpc-help/sccbot/pkg/modeladapter"
	"github.com/hpc-help/sccbot/pkg/modeladapter/usage"
	"github.com/hpc-help/sccbot/pkg/tools/toolbox"
)

const completionsPath = "/chat/completions"

var (
	_ modeladapter.Completer       = (*Adapter)(nil)
	_ modeladapter.UsageCompleter  = (*Adapter)(nil)
	_ modeladapter.StreamCompleter = (*Adapter)(nil)
)

// Adapter implements modeladapter.Completer for OpenAI-compatible Chat
// Completions APIs.
type Adapter struct {
	modeladapter.ModelAdapter

	// EmbedModel selects the model for Embed calls. Empty falls back to
	// text-embedding-3-small.
	EmbedModel string
}

// New creates an Adapter for the given endpoint. The baseURL carries the API
// prefix (e.g. "https://models.github.ai/inference", no trailing slash).
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{Key: apiKey}
	a.Name = model
	a.Temperature = 0.3
	a.TopP = 1.0
	a.MaxTokens = 1024

	return a
}

// Complete sends a conversation to the Chat Completions API and returns the
// assistant's reply.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	reply, _, err := a.CompleteWithUsage(ctx, c, tools)
	return reply, err
}

// CompleteWithUsage sends a conversation to the Chat Completions API and
// returns the assistant's reply together with the usage the API reported for
// this call. The adapter-wide tracker accumulates the same counts as
// process totals.
func (a *Adapter) CompleteWithUsage(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, usage.TokenCount, error) {
	req := a.buildRequest(c, tools, false)

	var resp apiResponse
	if err := a.PostJSON(ctx, completionsPath, req, &resp); err != nil {
		return message.Message{}, usage.TokenCount{}, fmt.Errorf("openai: %w", err)
	}

	count := usage.TokenCount{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	a.Usage.Add(count)

	if len(resp.Choices) == 0 {
		return message.Message{}, count, fmt.Errorf("openai: empty choices in response")
	}

	return parseChoice(resp.Choices[0]), count, nil
}

// --- request types ---

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
	Tools       []apiToolDef `json:"tools,omitempty"`
}

type apiMessage struct {
	Role       string        `json:"role"`
	Content    *string       `json:"content"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function apiToolFunction `json:"function"`
}

type apiToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiToolDef struct {
	Type     string         `json:"type"`
	Function apiToolDefFunc `json:"function"`
}

type apiToolDefFunc struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// --- response types ---

type apiResponse struct {
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Message      apiRespMessage `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type apiRespMessage struct {
	Role      string        `json:"role"`
	Content   *string       `json:"content"`
	ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(c *chat.Chat, tools []toolbox.Tool, stream bool) apiRequest {
	req := apiRequest{
		Model:     a.Name,
		MaxTokens: a.MaxTokens,
		Stream:    stream,
	}

	if a.Temperature != 0 {
		t := a.Temperature
		req.Temperature = &t
	}

	if a.TopP != 0 {
		p := a.TopP
		req.TopP = &p
	}

	if len(tools) > 0 {
		req.Tools = make([]apiToolDef, len(tools))
		for i, t := range tools {
			schema := t.InputSchema
			if schema == nil {
				schema = json.RawMessage(`{"type":"object"}`)
			}
			req.Tools[i] = apiToolDef{
				Type: "function",
				Function: apiToolDefFunc{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  schema,
				},
			}
		}
	}

	for _, m := range c.Messages() {
		appendMessages(&req.Messages, m)
	}

	return req
}

func appendMessages(msgs *[]apiMessage, m message.Message) {
	switch m.Role {
	case role.System:
		text := m.TextContent()
		*msgs = append(*msgs, apiMessage{Role: "system", Content: &text})

	case role.User:
		text := m.TextContent()
		*msgs = append(*msgs, apiMessage{Role: "user", Content: &text})

	case role.Assistant:
		var toolCalls []apiToolCall
		var text string

		for _, p := range m.Parts {
			switch v := p.(type) {
			case content.Text:
				text += v.Text
			case content.ToolCall:
				toolCalls = append(toolCalls, apiToolCall{
					ID:   v.ID,
					Type: "function",
					Function: apiToolFunction{
						Name:      v.Name,
						Arguments: v.Arguments,
					},
				})
			}
		}

		msg := apiMessage{Role: "assistant"}
		if text != "" {
			msg.Content = &text
		}
		if len(toolCalls) > 0 {
			msg.ToolCalls = toolCalls
		}

		*msgs = append(*msgs, msg)

	case role.Tool:
		for _, p := range m.Parts {
			if tr, ok := p.(content.ToolResult); ok {
				*msgs = append(*msgs, apiMessage{
					Role:       "tool",
					Content:    &tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
		}
	}
}

func parseChoice(choice apiChoice) message.Message {
	var parts []content.Part

	if choice.Message.Content != nil && *choice.Message.Content != "" {
		parts = append(parts, content.Text{Text: *choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, content.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return message.New(role.Assistant, parts...)
}
