package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/immagent/immagent/pkg/asset"
)

func (s *PGStore) GetText(ctx context.Context, id uuid.UUID) (*asset.TextAsset, bool, error) {
	if cached, ok := s.cache.Get(id); ok {
		t, ok := cached.(*asset.TextAsset)
		return t, ok, nil
	}

	var t asset.TextAsset
	row := s.db.QueryRow(ctx, `SELECT id, created_at, content FROM text_assets WHERE id = $1`, id)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.Content); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "get text asset")
	}
	s.cache.Put(&t)
	return &t, true, nil
}

func (s *PGStore) GetMessage(ctx context.Context, id uuid.UUID) (*asset.Message, bool, error) {
	if cached, ok := s.cache.Get(id); ok {
		m, ok := cached.(*asset.Message)
		return m, ok, nil
	}

	var (
		m             asset.Message
		role          string
		toolCallsJSON []byte
		toolCallID    *string
	)
	row := s.db.QueryRow(ctx, `
		SELECT id, created_at, role, content, tool_calls, tool_call_id, input_tokens, output_tokens
		FROM messages WHERE id = $1`, id)
	var content *string
	if err := row.Scan(&m.ID, &m.CreatedAt, &role, &content, &toolCallsJSON, &toolCallID, &m.InputTokens, &m.OutputTokens); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "get message")
	}
	m.Role = asset.Role(role)
	if content != nil {
		m.Content = *content
	}
	if toolCallID != nil {
		m.ToolCallID = *toolCallID
	}
	if len(toolCallsJSON) > 0 {
		if err := json.Unmarshal(toolCallsJSON, &m.ToolCalls); err != nil {
			return nil, false, errors.Wrap(err, "unmarshal tool_calls")
		}
	}
	s.cache.Put(&m)
	return &m, true, nil
}

func (s *PGStore) GetConversation(ctx context.Context, id uuid.UUID) (*asset.Conversation, bool, error) {
	if cached, ok := s.cache.Get(id); ok {
		c, ok := cached.(*asset.Conversation)
		return c, ok, nil
	}

	var c asset.Conversation
	row := s.db.QueryRow(ctx, `SELECT id, created_at, message_ids FROM conversations WHERE id = $1`, id)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.MessageIDs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "get conversation")
	}
	s.cache.Put(&c)
	return &c, true, nil
}

func (s *PGStore) GetAgent(ctx context.Context, id uuid.UUID) (*asset.Agent, bool, error) {
	if cached, ok := s.cache.Get(id); ok {
		a, ok := cached.(*asset.Agent)
		return a, ok, nil
	}

	a, found, err := s.scanAgentRow(s.db.QueryRow(ctx, `
		SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
		FROM agents WHERE id = $1`, id))
	if err != nil || !found {
		return nil, found, err
	}
	s.cache.Put(a)
	return a, true, nil
}

// scanAgentRow is shared by GetAgent, GetLineage, ListAgents, and
// FindByName — every query that returns full agent rows.
func (s *PGStore) scanAgentRow(row pgx.Row) (*asset.Agent, bool, error) {
	var (
		a               asset.Agent
		parentID        *uuid.UUID
		modelConfigJSON []byte
	)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.Name, &a.SystemPromptID, &parentID, &a.ConversationID, &a.Model, &modelConfigJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "scan agent row")
	}
	a.ParentID = parentID

	var raw map[string]any
	if len(modelConfigJSON) > 0 {
		if err := json.Unmarshal(modelConfigJSON, &raw); err != nil {
			return nil, false, errors.Wrap(err, "unmarshal model_config")
		}
	}
	cfg, err := asset.ModelConfigFromMap(raw)
	if err != nil {
		return nil, false, errors.Wrap(err, "decode model_config")
	}
	a.ModelConfig = cfg

	return &a, true, nil
}
