// Package advance implements the turn loop: reconstructing an agent's
// history, driving one completion, executing any requested tool calls,
// and emitting a new agent version with every dependent asset cached and
// persisted as one bundle.
package advance

import (
	"context"
	"time"

	"github.com/immagent/immagent/pkg/asset"
)

// CompletionProvider is the sole external collaborator the engine needs
// for the LLM side of a turn. model is an opaque provider-routing string;
// the engine never interprets it. Implementations are expected to retry
// transient failures internally up to maxRetries and bound each attempt
// by timeout, surfacing only a *immerr.LLMError once exhausted.
type CompletionProvider interface {
	Complete(
		ctx context.Context,
		systemPrompt string,
		messages []*asset.Message,
		model string,
		cfg asset.ModelConfig,
		timeout time.Duration,
		maxRetries int,
	) (*asset.Message, error)
}

// ToolProvider is the sole external collaborator for tool execution.
// arguments is passed through verbatim from the completion provider's
// tool-call payload. A failure here never reaches an Advance caller — the
// engine folds it into a textual tool-result message instead.
type ToolProvider interface {
	Execute(ctx context.Context, toolName, argumentsJSON string) (string, error)
}
