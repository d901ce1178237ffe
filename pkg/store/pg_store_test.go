package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/immagent/immagent/pkg/asset"
)

func newMockStore(t *testing.T) (*PGStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewWithQueryer(mock, nil), mock
}

func TestPGStore_GetText_CacheMiss(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	text := asset.NewTextAsset("you are helpful")
	rows := pgxmock.NewRows([]string{"id", "created_at", "content"}).
		AddRow(text.ID, text.CreatedAt, text.Content)
	mock.ExpectQuery(`SELECT id, created_at, content FROM text_assets`).
		WithArgs(text.ID).
		WillReturnRows(rows)

	got, found, err := s.GetText(ctx, text.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, text.Content, got.Content)

	// A second fetch must hit the cache, not the mock's expectation queue.
	got2, found2, err := s.GetText(ctx, text.ID)
	require.NoError(t, err)
	require.True(t, found2)
	require.Same(t, got, got2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_GetAgent_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery(`SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "name", "system_prompt_id", "parent_id", "conversation_id", "model", "model_config"}))

	_, found, err := s.GetAgent(ctx, id)
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_SaveBundle_Atomic(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	text := asset.NewTextAsset("prompt")
	user := asset.NewMessage(asset.RoleUser, "hi")
	conv := asset.NewConversation([]uuid.UUID{user.ID})
	modelCfg, err := asset.ModelConfigFromMap(nil)
	require.NoError(t, err)
	agent := &asset.Agent{
		ID:             uuid.New(),
		CreatedAt:      time.Now(),
		Name:           "root",
		SystemPromptID: text.ID,
		ConversationID: conv.ID,
		Model:          "claude-3-5-haiku",
		ModelConfig:    modelCfg,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO text_assets`).WithArgs(text.ID, text.CreatedAt, text.Content).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO conversations`).WithArgs(conv.ID, conv.CreatedAt, conv.MessageIDs).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO agents`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = s.SaveBundle(ctx, Bundle{
		Text:         text,
		Conversation: conv,
		Messages:     []*asset.Message{user},
		Agent:        agent,
	})
	require.NoError(t, err)

	cached, ok := s.cache.Get(agent.ID)
	require.True(t, ok)
	require.Same(t, agent, cached)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_SaveBundle_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	agent := &asset.Agent{ID: uuid.New(), CreatedAt: time.Now(), Name: "a", Model: "m"}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO agents`).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := s.SaveBundle(ctx, Bundle{Agent: agent})
	require.Error(t, err)

	_, ok := s.cache.Get(agent.ID)
	require.False(t, ok, "a rolled-back bundle must never reach the cache")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_DeleteAgent_ForgetsCache(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	agent := &asset.Agent{ID: uuid.New(), CreatedAt: time.Now(), Name: "a", Model: "m"}
	s.cache.Put(agent)

	mock.ExpectExec(`DELETE FROM agents WHERE id = \$1`).
		WithArgs(agent.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteAgent(ctx, agent.ID))

	_, ok := s.cache.Get(agent.ID)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_GC_ForgetsOnlySweptIDs(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	keptText := asset.NewTextAsset("kept")
	sweptText := asset.NewTextAsset("orphaned")
	s.cache.Put(keptText)
	s.cache.Put(sweptText)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM messages`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`DELETE FROM conversations`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`DELETE FROM text_assets`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(sweptText.ID))
	mock.ExpectCommit()

	res, err := s.GC(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.TextAssetsDeleted)

	_, stillCached := s.cache.Get(keptText.ID)
	require.True(t, stillCached)
	_, sweptCached := s.cache.Get(sweptText.ID)
	require.False(t, sweptCached)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_FindByName_ExactCaseSensitiveMatch(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	agent := &asset.Agent{ID: uuid.New(), CreatedAt: time.Now(), Name: "Scout", Model: "m"}
	modelConfigJSON := []byte(`{}`)
	rows := pgxmock.NewRows([]string{"id", "created_at", "name", "system_prompt_id", "parent_id", "conversation_id", "model", "model_config"}).
		AddRow(agent.ID, agent.CreatedAt, agent.Name, uuid.Nil, nil, uuid.Nil, agent.Model, modelConfigJSON)
	mock.ExpectQuery(`SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config`).
		WithArgs("Scout").
		WillReturnRows(rows)

	got, found, err := s.FindByName(ctx, "Scout")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Scout", got.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
