// Package memstore is an in-memory Store whose maps hold every saved
// asset, regardless of GC pressure, until the process exits or its own GC
// sweeps the asset. It exists for tests and single-process demos where a
// Postgres instance would be overkill; it satisfies the exact same
// store.Store contract as the pooled Postgres backend.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/immagent/immagent/pkg/asset"
	"github.com/immagent/immagent/pkg/cache"
	"github.com/immagent/immagent/pkg/immerr"
	"github.com/immagent/immagent/pkg/store"
)

// MemStore is safe for concurrent use. mu serializes both writes and
// reads: unlike PGStore, where the cache is an accelerator in front of a
// database of record, here the cache (and these maps) *are* the record,
// so every access needs the same lock. Every getter reads these maps, and
// GC enumerates them for sweeping; texts and messages are additionally put
// into cache on save and forgotten from it when GC sweeps them.
type MemStore struct {
	mu    sync.Mutex
	cache cache.Cache

	texts         map[uuid.UUID]*asset.TextAsset
	messages      map[uuid.UUID]*asset.Message
	conversations map[uuid.UUID]*asset.Conversation
	agents        map[uuid.UUID]*asset.Agent
}

func New() *MemStore {
	return &MemStore{
		cache:         cache.NewStrongCache(),
		texts:         make(map[uuid.UUID]*asset.TextAsset),
		messages:      make(map[uuid.UUID]*asset.Message),
		conversations: make(map[uuid.UUID]*asset.Conversation),
		agents:        make(map[uuid.UUID]*asset.Agent),
	}
}

func (s *MemStore) InitSchema(ctx context.Context) error { return nil }

func (s *MemStore) Close() {}

func (s *MemStore) GetText(ctx context.Context, id uuid.UUID) (*asset.TextAsset, bool, error) {
	s.mu.Lock()
	t, ok := s.texts[id]
	s.mu.Unlock()
	return t, ok, nil
}

func (s *MemStore) GetMessage(ctx context.Context, id uuid.UUID) (*asset.Message, bool, error) {
	s.mu.Lock()
	m, ok := s.messages[id]
	s.mu.Unlock()
	return m, ok, nil
}

func (s *MemStore) GetConversation(ctx context.Context, id uuid.UUID) (*asset.Conversation, bool, error) {
	s.mu.Lock()
	c, ok := s.conversations[id]
	s.mu.Unlock()
	return c, ok, nil
}

func (s *MemStore) GetAgent(ctx context.Context, id uuid.UUID) (*asset.Agent, bool, error) {
	s.mu.Lock()
	a, ok := s.agents[id]
	s.mu.Unlock()
	return a, ok, nil
}

// SaveBundle mirrors PGStore.SaveBundle's ON CONFLICT DO NOTHING semantics:
// re-saving an id already present is a silent no-op, never an overwrite.
func (s *MemStore) SaveBundle(ctx context.Context, b store.Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Text != nil {
		if _, ok := s.texts[b.Text.ID]; !ok {
			s.texts[b.Text.ID] = b.Text
			s.cache.Put(b.Text)
		}
	}
	for _, m := range b.Messages {
		if _, ok := s.messages[m.ID]; !ok {
			s.messages[m.ID] = m
			s.cache.Put(m)
		}
	}
	if b.Conversation != nil {
		if _, ok := s.conversations[b.Conversation.ID]; !ok {
			s.conversations[b.Conversation.ID] = b.Conversation
		}
	}
	if b.Agent != nil {
		if _, ok := s.agents[b.Agent.ID]; !ok {
			s.agents[b.Agent.ID] = b.Agent
		}
	}
	return nil
}

// DeleteAgent removes one agent row and replicates the Postgres backend's
// parent_id UUID NULL REFERENCES agents(id) ON DELETE SET NULL behavior by
// hand: since these maps are the record, not a cache in front of one,
// nothing else will null out a deleted agent's children for us.
func (s *MemStore) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.agents, id)
	for cid, child := range s.agents {
		if child.ParentID != nil && *child.ParentID == id {
			orphaned := *child
			orphaned.ParentID = nil
			s.agents[cid] = &orphaned
		}
	}
	return nil
}

// GC sweeps messages and conversations unreferenced by any remaining
// agent, then text assets unreferenced as a system prompt, mirroring the
// three-pass order of PGStore.GC.
func (s *MemStore) GC(ctx context.Context) (store.GCResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	liveConversations := make(map[uuid.UUID]bool, len(s.agents))
	liveSystemPrompts := make(map[uuid.UUID]bool, len(s.agents))
	for _, a := range s.agents {
		liveConversations[a.ConversationID] = true
		liveSystemPrompts[a.SystemPromptID] = true
	}

	liveMessages := make(map[uuid.UUID]bool)
	for id, c := range s.conversations {
		if !liveConversations[id] {
			continue
		}
		for _, mid := range c.MessageIDs {
			liveMessages[mid] = true
		}
	}

	var res store.GCResult
	for id := range s.messages {
		if !liveMessages[id] {
			delete(s.messages, id)
			s.cache.Forget(id)
			res.MessagesDeleted++
		}
	}

	for id := range s.conversations {
		if !liveConversations[id] {
			delete(s.conversations, id)
			res.ConversationsDeleted++
		}
	}

	for id := range s.texts {
		if !liveSystemPrompts[id] {
			delete(s.texts, id)
			s.cache.Forget(id)
			res.TextAssetsDeleted++
		}
	}

	return res, nil
}

// GetLineage walks parent_id through the in-memory agents map. Unlike the
// Postgres backend's single recursive query, this is a plain pointer
// chase, but it must detect the same broken-pointer condition: a non-nil
// ParentID that names no agent we hold.
func (s *MemStore) GetLineage(ctx context.Context, id uuid.UUID) ([]*asset.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, ok := s.agents[id]
	if !ok {
		return nil, immerr.NewAssetNotFound(immerr.AssetKindAgent, id)
	}

	chain := []*asset.Agent{start}
	cur := start
	for cur.ParentID != nil {
		parent, ok := s.agents[*cur.ParentID]
		if !ok {
			return nil, immerr.NewAssetNotFound(immerr.AssetKindAgent, *cur.ParentID)
		}
		chain = append(chain, parent)
		cur = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (s *MemStore) ListAgents(ctx context.Context, limit, offset int, name string) ([]*asset.Agent, error) {
	s.mu.Lock()
	all := make([]*asset.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		if name == "" || strings.Contains(strings.ToLower(a.Name), strings.ToLower(name)) {
			all = append(all, a)
		}
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset > 0 {
		if offset >= len(all) {
			return nil, nil
		}
		all = all[offset:]
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemStore) CountAgents(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		return len(s.agents), nil
	}
	n := 0
	for _, a := range s.agents {
		if strings.Contains(strings.ToLower(a.Name), strings.ToLower(name)) {
			n++
		}
	}
	return n, nil
}

// FindByName is an exact, case-sensitive match against the most recently
// created agent with that name, matching PGStore's semantics.
func (s *MemStore) FindByName(ctx context.Context, name string) (*asset.Agent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *asset.Agent
	for _, a := range s.agents {
		if a.Name != name {
			continue
		}
		if best == nil || a.CreatedAt.After(best.CreatedAt) {
			best = a
		}
	}
	return best, best != nil, nil
}

var _ store.Store = (*MemStore)(nil)
