package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"

	"github.com/immagent/immagent/pkg/logging"
	"github.com/immagent/immagent/pkg/telemetry"
)

var tracer = telemetry.Tracer("immagent/store")

// SaveBundle persists everything in b in one transaction using
// INSERT ... ON CONFLICT (id) DO NOTHING, so re-saving an already-cached
// dependency is a harmless no-op. The cache is primed only after the
// transaction commits, never before — a rolled-back bundle must leave no
// trace in the cache either.
func (s *PGStore) SaveBundle(ctx context.Context, b Bundle) (err error) {
	ctx, span := tracer.Start(ctx, "store.SaveBundle")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := b.Validate(); err != nil {
		return errors.Wrap(err, "invalid bundle")
	}

	ctx = logging.WithOperation(ctx, "save_bundle")
	log := logging.G(ctx).WithField("agent_id", b.Agent.ID)
	log.Debug("store: saving bundle")

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin save_bundle transaction")
	}
	defer tx.Rollback(ctx)

	if b.Text != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO text_assets (id, created_at, content) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`, b.Text.ID, b.Text.CreatedAt, b.Text.Content); err != nil {
			return errors.Wrap(err, "insert text asset")
		}
	}

	for _, m := range b.Messages {
		toolCallsJSON, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return errors.Wrap(err, "marshal tool_calls")
		}
		var toolCallID *string
		if m.ToolCallID != "" {
			toolCallID = &m.ToolCallID
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO messages (id, created_at, role, content, tool_calls, tool_call_id, input_tokens, output_tokens)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			m.ID, m.CreatedAt, string(m.Role), m.Content, toolCallsJSON, toolCallID, m.InputTokens, m.OutputTokens); err != nil {
			return errors.Wrap(err, "insert message")
		}
	}

	if b.Conversation != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversations (id, created_at, message_ids) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`, b.Conversation.ID, b.Conversation.CreatedAt, b.Conversation.MessageIDs); err != nil {
			return errors.Wrap(err, "insert conversation")
		}
	}

	if b.Agent != nil {
		modelConfigJSON, err := json.Marshal(b.Agent.ModelConfig.ToMap())
		if err != nil {
			return errors.Wrap(err, "marshal model_config")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO agents (id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			b.Agent.ID, b.Agent.CreatedAt, b.Agent.Name, b.Agent.SystemPromptID, b.Agent.ParentID,
			b.Agent.ConversationID, b.Agent.Model, modelConfigJSON); err != nil {
			return errors.Wrap(err, "insert agent")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit save_bundle transaction")
	}

	// Prime the cache in dependency order now that the write is durable.
	if b.Text != nil {
		s.cache.Put(b.Text)
	}
	for _, m := range b.Messages {
		s.cache.Put(m)
	}
	if b.Conversation != nil {
		s.cache.Put(b.Conversation)
	}
	if b.Agent != nil {
		s.cache.Put(b.Agent)
	}

	return nil
}

// DeleteAgent removes one agent row. Children's parent_id becomes null
// via the ON DELETE SET NULL foreign key; GC must run afterward to reclaim
// any messages/conversations/text assets the deletion orphaned.
func (s *PGStore) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "delete agent")
	}
	s.cache.Forget(id)
	return nil
}

// GC runs three ordered deletes in one transaction: orphaned messages,
// then orphaned conversations, then orphaned text assets. Either all
// three take effect or none do.
func (s *PGStore) GC(ctx context.Context) (res GCResult, err error) {
	ctx, span := tracer.Start(ctx, "store.GC")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return GCResult{}, errors.Wrap(err, "begin gc transaction")
	}
	defer tx.Rollback(ctx)

	deletedMessages, err := deleteReturningIDs(ctx, tx, `
		DELETE FROM messages
		WHERE id NOT IN (
			SELECT UNNEST(message_ids) FROM conversations
			WHERE id IN (SELECT conversation_id FROM agents)
		)
		RETURNING id`)
	if err != nil {
		return GCResult{}, errors.Wrap(err, "gc messages")
	}
	res.MessagesDeleted = int64(len(deletedMessages))

	deletedConversations, err := deleteReturningIDs(ctx, tx, `
		DELETE FROM conversations
		WHERE id NOT IN (SELECT conversation_id FROM agents)
		RETURNING id`)
	if err != nil {
		return GCResult{}, errors.Wrap(err, "gc conversations")
	}
	res.ConversationsDeleted = int64(len(deletedConversations))

	deletedTextAssets, err := deleteReturningIDs(ctx, tx, `
		DELETE FROM text_assets
		WHERE id NOT IN (SELECT system_prompt_id FROM agents)
		RETURNING id`)
	if err != nil {
		return GCResult{}, errors.Wrap(err, "gc text assets")
	}
	res.TextAssetsDeleted = int64(len(deletedTextAssets))

	if err := tx.Commit(ctx); err != nil {
		return GCResult{}, errors.Wrap(err, "commit gc transaction")
	}

	// Swept ids may still be cache-resident (an observer-only cache can
	// outlive the row it once accelerated); drop each eagerly rather than
	// wait for its weak reference to naturally lapse.
	for _, id := range deletedMessages {
		s.cache.Forget(id)
	}
	for _, id := range deletedConversations {
		s.cache.Forget(id)
	}
	for _, id := range deletedTextAssets {
		s.cache.Forget(id)
	}

	return res, nil
}

func deleteReturningIDs(ctx context.Context, tx pgx.Tx, query string) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
