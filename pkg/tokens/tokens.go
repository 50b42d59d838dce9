// Package tokens estimates the token cost of text and chat messages.
//
// Two interchangeable strategies are provided: a word-count heuristic that
// needs no model vocabulary, and an exact tokenizer backed by tiktoken.
// Trimming decisions differ only in precision between the two, never in
// control flow.
package tokens

import (
	"math"
	"strings"

	"github.com/hpc-help/sccbot/pkg/chats/message"
)

// Estimator estimates token counts for text and messages. Implementations
// are pure functions of their input.
type Estimator interface {
	EstimateText(text string) int
	EstimateMessage(m message.Message) int
	EstimateMessages(msgs []message.Message) int
}

// wordsPerTokenFactor approximates tokens from whitespace-separated words
// for English prose mixed with shell commands and paths.
const wordsPerTokenFactor = 2.5

// Heuristic estimates tokens as word count × 2.5. The zero value is ready
// to use.
type Heuristic struct{}

var _ Estimator = Heuristic{}

// EstimateText returns the estimated token count for a plain string.
func (Heuristic) EstimateText(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(strings.Fields(text))) * wordsPerTokenFactor))
}

// EstimateMessage sums the estimate of the message's text content and a
// textual rendering of its tool calls and tool results.
func (h Heuristic) EstimateMessage(m message.Message) int {
	return h.EstimateText(renderMessage(m))
}

// EstimateMessages sums the estimate of each message in the list.
func (h Heuristic) EstimateMessages(msgs []message.Message) int {
	total := 0
	for _, m := range msgs {
		total += h.EstimateMessage(m)
	}
	return total
}

// renderMessage flattens a message into the text the estimator should count:
// text content plus tool-call names and arguments plus tool-result content.
func renderMessage(m message.Message) string {
	var b strings.Builder

	if text := m.TextContent(); text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}

	for _, tc := range m.ToolCalls() {
		b.WriteString(tc.Name)
		b.WriteString("\n")
		b.WriteString(tc.Arguments)
		b.WriteString("\n")
	}

	for _, tr := range m.ToolResults() {
		b.WriteString(tr.Content)
		b.WriteString("\n")
	}

	return b.String()
}
