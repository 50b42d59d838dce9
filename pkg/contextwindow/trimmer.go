// Package contextwindow bounds conversation histories against a token budget.
//
// The policy is greedy and suffix-preserving: the system message (at most
// one) is always retained, then messages are kept newest-first while the
// running total stays within budget. Recent messages are never dropped in
// favor of older ones, and a single message is never split.
package contextwindow

import (
	"github.com/hpc-help/sccbot/pkg/chats/message"
	"github.com/hpc-help/sccbot/pkg/chats/role"
	"github.com/hpc-help/sccbot/pkg/tokens"
)

// DefaultBudget is the default token budget for a conversation sent to the
// provider. The budget is a soft target: a system message that alone exceeds
// it is still kept.
const DefaultBudget = 6000

// Trimmer reduces a message history to fit a token budget.
type Trimmer struct {
	Estimator tokens.Estimator
	Budget    int
}

// New creates a Trimmer with the given estimator and budget. A zero or
// negative budget falls back to DefaultBudget.
func New(est tokens.Estimator, budget int) *Trimmer {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Trimmer{Estimator: est, Budget: budget}
}

// Trim returns msgs unchanged when it already fits the budget. Otherwise it
// keeps the system message plus the longest suffix of the remaining messages
// that fits, reassembled in chronological order with the system message
// first. Trim is idempotent.
func (t *Trimmer) Trim(msgs []message.Message) []message.Message {
	if t.Estimator.EstimateMessages(msgs) <= t.Budget {
		return msgs
	}

	var system *message.Message
	rest := make([]message.Message, 0, len(msgs))
	for i, m := range msgs {
		if system == nil && m.Role == role.System {
			system = &msgs[i]
			continue
		}
		rest = append(rest, m)
	}

	// The system message is kept even when it alone blows the budget; the
	// budget is a soft target, not a hard cap.
	total := 0
	if system != nil {
		total = t.Estimator.EstimateMessage(*system)
	}

	keepFrom := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		cost := t.Estimator.EstimateMessage(rest[i])
		if total+cost > t.Budget {
			break
		}
		total += cost
		keepFrom = i
	}

	kept := make([]message.Message, 0, len(rest)-keepFrom+1)
	if system != nil {
		kept = append(kept, *system)
	}
	kept = append(kept, rest[keepFrom:]...)

	return kept
}
