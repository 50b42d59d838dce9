package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpc-help/sccbot/pkg/chats/chat"
	"github.com/hpc-help/sccbot/pkg/chats/message"
	"github.com/hpc-help/sccbot/pkg/chats/role"
	"github.com/hpc-help/sccbot/pkg/modeladapter"
)

// streamDoneMarker terminates an SSE completion stream.
const streamDoneMarker = "[DONE]"

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// CompleteStream sends a conversation with stream enabled and delivers
// content deltas to fn as they arrive. The returned message always carries
// the full accumulated text, even when fn stops delivery early, so the
// conversation history stays consistent for logging. Tool definitions are
// not sent on streaming calls; the engine resolves tool use before the final
// streamed answer.
func (a *Adapter) CompleteStream(ctx context.Context, c *chat.Chat, fn modeladapter.StreamFunc) (message.Message, error) {
	req := a.buildRequest(c, nil, true)

	body, err := a.PostStream(ctx, completionsPath, req)
	if err != nil {
		return message.Message{}, fmt.Errorf("openai: %w", err)
	}
	defer func() { _ = body.Close() }()

	var full strings.Builder
	delivering := fn != nil

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == streamDoneMarker {
			break
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Keep-alives and malformed events are skipped; the stream
			// itself stays usable.
			continue
		}

		if len(ev.Choices) == 0 {
			continue
		}

		delta := ev.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		full.WriteString(delta)

		if delivering {
			if err := fn(modeladapter.StreamChunk{Text: delta}); err != nil {
				// Consumer bailed out; keep draining so history gets the
				// complete text.
				delivering = false
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return message.Message{}, fmt.Errorf("openai: read stream: %w", err)
	}

	if delivering {
		_ = fn(modeladapter.StreamChunk{Done: true})
	}

	return message.NewText(role.Assistant, full.String()), nil
}
