// Package usage aggregates the per-message token counters ImmAgent
// attaches to assistant messages. There is no per-provider cost summary
// here, since this system has no pricing table.
package usage

import "github.com/immagent/immagent/pkg/asset"

// Totals is the sum of InputTokens/OutputTokens across a set of messages.
// Messages is the count of assistant messages that actually carried usage
// counters — a message created before a provider reports usage, or from
// a provider that never does, is simply not counted.
type Totals struct {
	InputTokens  int
	OutputTokens int
	Messages     int
}

// TotalTokens is InputTokens + OutputTokens.
func (t Totals) TotalTokens() int { return t.InputTokens + t.OutputTokens }

// Sum aggregates usage across messages. Only assistant messages carrying
// both counters contribute; everything else (user turns, tool results,
// an assistant message the provider didn't report usage for) is skipped.
func Sum(messages []*asset.Message) Totals {
	var t Totals
	for _, m := range messages {
		if m.Role != asset.RoleAssistant || m.InputTokens == nil || m.OutputTokens == nil {
			continue
		}
		t.InputTokens += *m.InputTokens
		t.OutputTokens += *m.OutputTokens
		t.Messages++
	}
	return t
}
