package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hpc-help/sccbot/pkg/chats/message"
)

// defaultEncoding is compatible with the gpt-4o model family.
const defaultEncoding = "cl100k_base"

// Tiktoken is an exact Estimator bound to a tiktoken encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

var _ Estimator = (*Tiktoken)(nil)

// NewTiktoken creates an exact estimator for the named encoding. An empty
// name selects cl100k_base.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokens: get encoding %q: %w", encoding, err)
	}

	return &Tiktoken{enc: enc}, nil
}

// NewTiktokenForModel creates an exact estimator using the vocabulary of the
// named model (e.g. "gpt-4o-mini").
func NewTiktokenForModel(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("tokens: encoding for model %q: %w", model, err)
	}

	return &Tiktoken{enc: enc}, nil
}

// EstimateText returns the exact token count for a plain string.
func (t *Tiktoken) EstimateText(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// EstimateMessage counts the message's text content plus a textual rendering
// of its tool calls and tool results.
func (t *Tiktoken) EstimateMessage(m message.Message) int {
	return t.EstimateText(renderMessage(m))
}

// EstimateMessages sums the count of each message in the list.
func (t *Tiktoken) EstimateMessages(msgs []message.Message) int {
	total := 0
	for _, m := range msgs {
		total += t.EstimateMessage(m)
	}
	return total
}
