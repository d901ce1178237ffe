package advance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/immagent/immagent/pkg/asset"
	"github.com/immagent/immagent/pkg/config"
	"github.com/immagent/immagent/pkg/immerr"
	"github.com/immagent/immagent/pkg/logging"
	"github.com/immagent/immagent/pkg/store"
)

// Engine drives the turn loop against one persistence backend, one
// completion provider, and a default tool provider. A per-call Options
// value may override the tool provider for that call alone — see
// Options.ToolProvider.
type Engine struct {
	Store      store.Store
	Completion CompletionProvider
	Tools      ToolProvider
}

// New constructs an Engine. tools may be nil if this deployment never
// expects tool calls; a completion response carrying tool_calls with a
// nil tools provider answers each call with a tool-result message whose
// content is "Error: no tool provider configured", and the loop goes on
// as it does after any other execution failure.
func New(s store.Store, completion CompletionProvider, tools ToolProvider) *Engine {
	return &Engine{Store: s, Completion: completion, Tools: tools}
}

// Options bundles the generic config.AdvanceOptions with a per-call,
// optional tool provider override. Kept outside pkg/config so that
// package stays free of the advance package's interface types.
type Options struct {
	config.AdvanceOptions
	ToolProvider ToolProvider
}

// Advance reconstructs history, appends the user turn, runs completion
// and tool rounds until the model stops calling tools or the round budget
// is exhausted, then emits a new immutable Agent as a child of a.
// Nothing is persisted until the final SaveBundle commits — any failure
// before emission discards everything built during the call.
func (e *Engine) Advance(ctx context.Context, a *asset.Agent, userInput string, opts Options) (*asset.Agent, error) {
	opts.AdvanceOptions = opts.AdvanceOptions.WithDefaults()
	ctx = logging.WithOperation(ctx, "advance")
	log := logging.G(ctx).WithField("agent_id", a.ID)

	// Step 1: history reconstruction.
	systemPrompt, ok, err := e.Store.GetText(ctx, a.SystemPromptID)
	if err != nil {
		return nil, errors.Wrap(err, "advance: fetch system prompt")
	}
	if !ok {
		return nil, immerr.NewAssetNotFound(immerr.AssetKindSystemPrompt, a.SystemPromptID)
	}

	conversation, ok, err := e.Store.GetConversation(ctx, a.ConversationID)
	if err != nil {
		return nil, errors.Wrap(err, "advance: fetch conversation")
	}
	if !ok {
		return nil, immerr.NewAssetNotFound(immerr.AssetKindConversation, a.ConversationID)
	}

	history := make([]*asset.Message, 0, len(conversation.MessageIDs))
	for _, id := range conversation.MessageIDs {
		m, ok, err := e.Store.GetMessage(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "advance: fetch message")
		}
		if !ok {
			return nil, immerr.NewAssetNotFound(immerr.AssetKindMessage, id)
		}
		history = append(history, m)
	}

	// Step 2: user turn.
	userMsg := asset.NewMessage(asset.RoleUser, userInput)
	working := append(history, userMsg)

	modelCfg, err := a.ModelConfig.MergeOverride(opts.ModelConfig)
	if err != nil {
		return nil, errors.Wrap(err, "advance: merge model_config override")
	}

	tools := e.Tools
	if opts.ToolProvider != nil {
		tools = opts.ToolProvider
	}

	timeout := time.Duration(opts.TimeoutSeconds) * time.Second

	// Step 3: bounded round loop.
	for round := 0; round < opts.MaxToolRounds; round++ {
		assistantMsg, err := e.Completion.Complete(ctx, systemPrompt.Content, working, a.Model, modelCfg, timeout, opts.MaxRetries)
		if err != nil {
			return nil, errors.Wrap(err, "advance: completion")
		}
		working = append(working, assistantMsg)

		if len(assistantMsg.ToolCalls) == 0 {
			break
		}

		log.WithField("round", round).WithField("tool_calls", len(assistantMsg.ToolCalls)).Debug("advance: dispatching tool round")

		var toolResults []*asset.Message
		if tools == nil {
			toolResults = make([]*asset.Message, len(assistantMsg.ToolCalls))
			for i, call := range assistantMsg.ToolCalls {
				toolResults[i] = asset.NewMessage(asset.RoleTool, "Error: no tool provider configured").WithToolCallID(call.ID)
			}
		} else {
			toolResults = runToolRound(ctx, tools, assistantMsg.ToolCalls)
		}
		working = append(working, toolResults...)
	}

	// Step 4: emission.
	newMessages := working[len(history):]
	newConversation := asset.NewConversation(idsOf(working))

	newAgent := &asset.Agent{
		ID:             uuid.New(),
		CreatedAt:      time.Now(),
		Name:           a.Name,
		SystemPromptID: a.SystemPromptID,
		ParentID:       &a.ID,
		ConversationID: newConversation.ID,
		Model:          a.Model,
		ModelConfig:    modelCfg,
	}

	if err := e.Store.SaveBundle(ctx, store.Bundle{
		Conversation: newConversation,
		Messages:     newMessages,
		Agent:        newAgent,
	}); err != nil {
		return nil, errors.Wrap(err, "advance: save bundle")
	}

	// Step 5: return.
	return newAgent, nil
}

// Clone emits a sibling of a: a fresh agent with a's parent_id, optionally
// renamed, sharing a's conversation and model config untouched.
func (e *Engine) Clone(ctx context.Context, a *asset.Agent, newName string) (*asset.Agent, error) {
	name := a.Name
	if newName != "" {
		name = newName
	}
	sibling := &asset.Agent{
		ID:             uuid.New(),
		CreatedAt:      time.Now(),
		Name:           name,
		SystemPromptID: a.SystemPromptID,
		ParentID:       a.ParentID,
		ConversationID: a.ConversationID,
		Model:          a.Model,
		ModelConfig:    a.ModelConfig,
	}
	if err := e.Store.SaveBundle(ctx, store.Bundle{Agent: sibling}); err != nil {
		return nil, errors.Wrap(err, "clone: save bundle")
	}
	return sibling, nil
}

// MetadataOverride names the subset of an agent's non-conversation fields
// WithMetadata may change on the emitted child.
type MetadataOverride struct {
	Name        string
	Model       string
	ModelConfig map[string]any
}

// WithMetadata emits a child of a (parent_id = a.id) carrying the same
// conversation but altered name/model/config.
func (e *Engine) WithMetadata(ctx context.Context, a *asset.Agent, override MetadataOverride) (*asset.Agent, error) {
	name := a.Name
	if override.Name != "" {
		name = override.Name
	}
	model := a.Model
	if override.Model != "" {
		model = override.Model
	}
	cfg, err := a.ModelConfig.MergeOverride(override.ModelConfig)
	if err != nil {
		return nil, errors.Wrap(err, "with_metadata: merge model_config override")
	}

	child := &asset.Agent{
		ID:             uuid.New(),
		CreatedAt:      time.Now(),
		Name:           name,
		SystemPromptID: a.SystemPromptID,
		ParentID:       &a.ID,
		ConversationID: a.ConversationID,
		Model:          model,
		ModelConfig:    cfg,
	}
	if err := e.Store.SaveBundle(ctx, store.Bundle{Agent: child}); err != nil {
		return nil, errors.Wrap(err, "with_metadata: save bundle")
	}
	return child, nil
}

// CreateAgent mints a fresh text asset (the system prompt), an empty
// conversation, and a root agent (ParentID nil), all saved as one bundle.
// provider carries the model name and the caller's raw model_config bag.
func (e *Engine) CreateAgent(ctx context.Context, name, systemPrompt string, provider config.ProviderConfig) (*asset.Agent, error) {
	cfg, err := provider.Decode()
	if err != nil {
		return nil, errors.Wrap(err, "create_agent: decode model_config")
	}

	text := asset.NewTextAsset(systemPrompt)
	conversation := asset.NewConversation(nil)

	a := &asset.Agent{
		ID:             uuid.New(),
		CreatedAt:      time.Now(),
		Name:           name,
		SystemPromptID: text.ID,
		ConversationID: conversation.ID,
		Model:          provider.Model,
		ModelConfig:    cfg,
	}

	if err := e.Store.SaveBundle(ctx, store.Bundle{
		Text:         text,
		Conversation: conversation,
		Agent:        a,
	}); err != nil {
		return nil, errors.Wrap(err, "create_agent: save bundle")
	}

	return a, nil
}

func idsOf(messages []*asset.Message) []uuid.UUID {
	ids := make([]uuid.UUID, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return ids
}
