package advance

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/immagent/immagent/pkg/asset"
	"github.com/immagent/immagent/pkg/config"
	"github.com/immagent/immagent/pkg/store/memstore"
)

// stubCompletion replays one assistant message per call, in order, so a
// test can script a multi-round exchange without a real provider.
type stubCompletion struct {
	mu        sync.Mutex
	responses []*asset.Message
	calls     int
}

func (s *stubCompletion) Complete(ctx context.Context, systemPrompt string, messages []*asset.Message, model string, cfg asset.ModelConfig, timeout time.Duration, maxRetries int) (*asset.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.responses) {
		return asset.NewMessage(asset.RoleAssistant, "done"), nil
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

// stubTools answers every call with a fixed string, after an optional
// artificial delay keyed by call id — used to prove result ordering
// survives out-of-order completion.
type stubTools struct {
	answers map[string]string
	delays  map[string]time.Duration
}

func (s *stubTools) Execute(ctx context.Context, toolName, argumentsJSON string) (string, error) {
	// the call id isn't passed to Execute directly; tests key by tool name instead
	if d, ok := s.delays[toolName]; ok {
		time.Sleep(d)
	}
	if out, ok := s.answers[toolName]; ok {
		return out, nil
	}
	return "", fmt.Errorf("unknown tool %q", toolName)
}

func newTestAgent(t *testing.T, e *Engine) *asset.Agent {
	t.Helper()
	a, err := e.CreateAgent(context.Background(), "root", "You are helpful.", config.ProviderConfig{Model: "claude-3-5-haiku"})
	require.NoError(t, err)
	return a
}

func TestAdvance_CreateAndAdvanceWithoutTools(t *testing.T) {
	s := memstore.New()
	completion := &stubCompletion{responses: []*asset.Message{asset.NewMessage(asset.RoleAssistant, "pong")}}
	e := New(s, completion, nil)

	a0 := newTestAgent(t, e)
	a1, err := e.Advance(context.Background(), a0, "ping", Options{AdvanceOptions: config.DefaultAdvanceOptions()})
	require.NoError(t, err)

	require.NotNil(t, a1.ParentID)
	require.Equal(t, a0.ID, *a1.ParentID)

	conv, ok, err := s.GetConversation(context.Background(), a1.ConversationID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, conv.MessageIDs, 2)

	msgs := make([]*asset.Message, len(conv.MessageIDs))
	for i, id := range conv.MessageIDs {
		m, ok, err := s.GetMessage(context.Background(), id)
		require.NoError(t, err)
		require.True(t, ok)
		msgs[i] = m
	}
	require.Equal(t, asset.RoleUser, msgs[0].Role)
	require.Equal(t, "ping", msgs[0].Content)
	require.Equal(t, asset.RoleAssistant, msgs[1].Role)
	require.Equal(t, "pong", msgs[1].Content)

	reloaded, ok, err := s.GetAgent(context.Background(), a1.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, a1, reloaded)
}

func TestAdvance_ToolRound(t *testing.T) {
	s := memstore.New()
	toolCallMsg := asset.NewMessage(asset.RoleAssistant, "").WithToolCalls([]asset.ToolCall{{ID: "c1", Name: "clock", Arguments: "{}"}})
	completion := &stubCompletion{responses: []*asset.Message{
		toolCallMsg,
		asset.NewMessage(asset.RoleAssistant, "12:00"),
	}}
	tools := &stubTools{answers: map[string]string{"clock": "12:00 UTC"}}
	e := New(s, completion, tools)

	a0 := newTestAgent(t, e)
	a1, err := e.Advance(context.Background(), a0, "what time is it", Options{AdvanceOptions: config.DefaultAdvanceOptions()})
	require.NoError(t, err)

	conv, _, err := s.GetConversation(context.Background(), a1.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.MessageIDs, 4)

	var roles []asset.Role
	var contents []string
	for _, id := range conv.MessageIDs {
		m, _, err := s.GetMessage(context.Background(), id)
		require.NoError(t, err)
		roles = append(roles, m.Role)
		contents = append(contents, m.Content)
	}
	require.Equal(t, []asset.Role{asset.RoleUser, asset.RoleAssistant, asset.RoleTool, asset.RoleAssistant}, roles)
	require.Equal(t, "12:00 UTC", contents[2])
	require.Equal(t, "12:00", contents[3])
}

func TestAdvance_ConcurrentToolCallsPreserveOrder(t *testing.T) {
	s := memstore.New()
	toolCallMsg := asset.NewMessage(asset.RoleAssistant, "").WithToolCalls([]asset.ToolCall{
		{ID: "c1", Name: "slow", Arguments: "{}"},
		{ID: "c2", Name: "fast", Arguments: "{}"},
	})
	completion := &stubCompletion{responses: []*asset.Message{
		toolCallMsg,
		asset.NewMessage(asset.RoleAssistant, "done"),
	}}
	tools := &stubTools{
		answers: map[string]string{"slow": "slow-result", "fast": "fast-result"},
		delays:  map[string]time.Duration{"slow": 20 * time.Millisecond},
	}
	e := New(s, completion, tools)

	a0 := newTestAgent(t, e)
	a1, err := e.Advance(context.Background(), a0, "go", Options{AdvanceOptions: config.DefaultAdvanceOptions()})
	require.NoError(t, err)

	conv, _, err := s.GetConversation(context.Background(), a1.ConversationID)
	require.NoError(t, err)

	toolMsgIDs := conv.MessageIDs[2:4]
	first, _, err := s.GetMessage(context.Background(), toolMsgIDs[0])
	require.NoError(t, err)
	second, _, err := s.GetMessage(context.Background(), toolMsgIDs[1])
	require.NoError(t, err)

	require.Equal(t, "c1", first.ToolCallID)
	require.Equal(t, "slow-result", first.Content)
	require.Equal(t, "c2", second.ToolCallID)
	require.Equal(t, "fast-result", second.Content)
}

func TestAdvance_BoundedToolRounds(t *testing.T) {
	s := memstore.New()
	newToolCallMsg := func() *asset.Message {
		return asset.NewMessage(asset.RoleAssistant, "").WithToolCalls([]asset.ToolCall{{ID: "c1", Name: "clock", Arguments: "{}"}})
	}
	completion := &stubCompletion{responses: []*asset.Message{
		newToolCallMsg(), newToolCallMsg(), newToolCallMsg(), newToolCallMsg(), newToolCallMsg(),
	}}
	tools := &stubTools{answers: map[string]string{"clock": "12:00"}}
	e := New(s, completion, tools)

	a0 := newTestAgent(t, e)
	opts := config.DefaultAdvanceOptions()
	opts.MaxToolRounds = 3
	a1, err := e.Advance(context.Background(), a0, "loop forever", Options{AdvanceOptions: opts})
	require.NoError(t, err)

	conv, _, err := s.GetConversation(context.Background(), a1.ConversationID)
	require.NoError(t, err)
	// user + 3 rounds * (assistant + tool) = 1 + 6 = 7
	require.Len(t, conv.MessageIDs, 7)
}

func TestAdvance_SiblingClone(t *testing.T) {
	s := memstore.New()
	completion := &stubCompletion{responses: []*asset.Message{asset.NewMessage(asset.RoleAssistant, "ok")}}
	e := New(s, completion, nil)

	a0 := newTestAgent(t, e)
	a1, err := e.Advance(context.Background(), a0, "x", Options{AdvanceOptions: config.DefaultAdvanceOptions()})
	require.NoError(t, err)

	a1Prime, err := e.Clone(context.Background(), a1, "")
	require.NoError(t, err)

	require.NotEqual(t, a1.ID, a1Prime.ID)
	require.Equal(t, a1.ParentID, a1Prime.ParentID)
}

func TestAdvance_WithMetadataProducesChild(t *testing.T) {
	s := memstore.New()
	completion := &stubCompletion{}
	e := New(s, completion, nil)

	a0 := newTestAgent(t, e)
	child, err := e.WithMetadata(context.Background(), a0, MetadataOverride{Name: "renamed"})
	require.NoError(t, err)

	require.NotNil(t, child.ParentID)
	require.Equal(t, a0.ID, *child.ParentID)
	require.Equal(t, "renamed", child.Name)
	require.Equal(t, a0.ConversationID, child.ConversationID)
}
