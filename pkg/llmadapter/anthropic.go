// Package llmadapter ships ImmAgent's one concrete CompletionProvider,
// wrapping the Anthropic Messages API.
package llmadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/immagent/immagent/pkg/asset"
	"github.com/immagent/immagent/pkg/immerr"
	"github.com/immagent/immagent/pkg/logging"
)

// defaultMaxTokens is used when a ModelConfig carries no MaxTokens
// override; Anthropic's Messages API requires a positive value.
const defaultMaxTokens = 4096

// AnthropicProvider implements advance.CompletionProvider against the
// real Anthropic API.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider constructs a provider from an API key. Pass "" to
// fall back to the SDK's own ANTHROPIC_API_KEY environment lookup.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...)}
}

// Complete satisfies advance.CompletionProvider.
func (p *AnthropicProvider) Complete(
	ctx context.Context,
	systemPrompt string,
	messages []*asset.Message,
	model string,
	cfg asset.ModelConfig,
	timeout time.Duration,
	maxRetries int,
) (*asset.Message, error) {
	ctx = logging.WithOperation(ctx, "completion")
	log := logging.G(ctx).WithField("model", model)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokensOf(cfg)),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  toAnthropicMessages(messages),
	}
	applyModelConfig(&params, cfg)

	var response *anthropic.Message
	err := retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			resp, apiErr := p.client.Messages.New(attemptCtx, params)
			if apiErr != nil {
				return apiErr
			}
			response = resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(max(maxRetries, 1))),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Warn("llmadapter: retrying Anthropic call")
		}),
	)
	if err != nil {
		kind := immerr.LLMErrorPermanent
		if isRetryableError(err) {
			kind = immerr.LLMErrorTransient
		}
		return nil, immerr.NewLLMError(kind, err)
	}

	return fromAnthropicMessage(response), nil
}

func maxTokensOf(cfg asset.ModelConfig) int {
	if cfg.MaxTokens != nil && *cfg.MaxTokens > 0 {
		return *cfg.MaxTokens
	}
	return defaultMaxTokens
}

func applyModelConfig(params *anthropic.MessageNewParams, cfg asset.ModelConfig) {
	if cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*cfg.Temperature)
	}
	if cfg.TopP != nil {
		params.TopP = anthropic.Float(*cfg.TopP)
	}
	if cfg.TopK != nil {
		params.TopK = anthropic.Int(int64(*cfg.TopK))
	}
	if len(cfg.Stop) > 0 {
		params.StopSequences = cfg.Stop
	}
}

// toAnthropicMessages converts the working message list into Anthropic's
// wire format. role=system is excluded — system prompt travels in
// params.System, never inline in Messages.
func toAnthropicMessages(messages []*asset.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case asset.RoleSystem:
			continue
		case asset.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case asset.RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, call := range m.ToolCalls {
				var input any
				_ = json.Unmarshal([]byte(call.Arguments), &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case asset.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return out
}

// fromAnthropicMessage converts an API response into ImmAgent's Message,
// collecting every tool_use block into ToolCalls in the order returned.
func fromAnthropicMessage(resp *anthropic.Message) *asset.Message {
	var text string
	var calls []asset.ToolCall

	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += variant.Text
		case anthropic.ToolUseBlock:
			calls = append(calls, asset.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: string(variant.Input),
			})
		}
	}

	msg := asset.NewMessage(asset.RoleAssistant, text)
	if len(calls) > 0 {
		msg = msg.WithToolCalls(calls)
	}
	msg = msg.WithUsage(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	return msg
}

// isRetryableError classifies network-level failures, 429s, and 5xx
// responses as retryable; auth failures, bad requests, and content
// policy rejections (4xx other than 429) are not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	// Anything that isn't a typed API error (DNS failure, connection
	// reset, TLS handshake failure) is assumed transient.
	return true
}
