package llmadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/immagent/immagent/pkg/asset"
)

func TestIsRetryableError_ContextErrorsAreNotRetried(t *testing.T) {
	require.False(t, isRetryableError(context.Canceled))
	require.False(t, isRetryableError(context.DeadlineExceeded))
	require.False(t, isRetryableError(nil))
}

func TestMaxTokensOf_FallsBackToDefault(t *testing.T) {
	require.Equal(t, defaultMaxTokens, maxTokensOf(asset.ModelConfig{}))

	n := 256
	require.Equal(t, 256, maxTokensOf(asset.ModelConfig{MaxTokens: &n}))

	zero := 0
	require.Equal(t, defaultMaxTokens, maxTokensOf(asset.ModelConfig{MaxTokens: &zero}))
}

func TestToAnthropicMessages_SkipsSystemRole(t *testing.T) {
	messages := []*asset.Message{
		asset.NewMessage(asset.RoleSystem, "ignored"),
		asset.NewMessage(asset.RoleUser, "hi"),
		asset.NewMessage(asset.RoleAssistant, "hello"),
	}
	out := toAnthropicMessages(messages)
	require.Len(t, out, 2)
}
