// Package store defines the persistence-layer contract shared by the
// pooled Postgres backend and the in-memory backend, plus the Postgres
// implementation itself. Every read is cache-first; every write goes
// straight to the backend and primes the cache on success.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/immagent/immagent/pkg/asset"
)

// Bundle is the set of new assets one advance() or CreateAgent() call
// emits, saved atomically by SaveBundle. Text, Conversation, and Messages
// are all optional — Clone and WithMetadata save only a new Agent row,
// referencing an existing conversation by id — but Agent is always
// present.
type Bundle struct {
	Text         *asset.TextAsset
	Conversation *asset.Conversation
	Messages     []*asset.Message
	Agent        *asset.Agent
}

// Validate checks b for the structural problems that would otherwise
// surface as confusing constraint violations partway through SaveBundle's
// transaction, collecting every problem found rather than stopping at the
// first.
func (b Bundle) Validate() error {
	var result *multierror.Error

	if b.Agent == nil {
		result = multierror.Append(result, errors.New("bundle: agent is required"))
	}

	seen := make(map[uuid.UUID]bool, len(b.Messages))
	for _, m := range b.Messages {
		if m == nil {
			result = multierror.Append(result, errors.New("bundle: nil message"))
			continue
		}
		if seen[m.ID] {
			result = multierror.Append(result, fmt.Errorf("bundle: duplicate message id %s", m.ID))
		}
		seen[m.ID] = true
	}

	if b.Conversation != nil {
		// MessageIDs may reference messages saved by an earlier bundle, not
		// just the ones carried in b.Messages — only duplicates within the
		// list itself are a structural problem here.
		convSeen := make(map[uuid.UUID]bool, len(b.Conversation.MessageIDs))
		for _, id := range b.Conversation.MessageIDs {
			if convSeen[id] {
				result = multierror.Append(result, fmt.Errorf("bundle: conversation lists message id %s more than once", id))
			}
			convSeen[id] = true
		}
	}

	return result.ErrorOrNil()
}

// Store is the persistence-layer contract. Every *_not_found condition is
// reported as (zero, false, nil) from the typed getters, not an error —
// callers (principally the advance engine) are expected to turn an absent
// dependency into the appropriate immerr.AssetNotFoundError themselves,
// since only they know which asset kind they were resolving.
type Store interface {
	InitSchema(ctx context.Context) error

	GetText(ctx context.Context, id uuid.UUID) (*asset.TextAsset, bool, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*asset.Message, bool, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*asset.Conversation, bool, error)
	GetAgent(ctx context.Context, id uuid.UUID) (*asset.Agent, bool, error)

	SaveBundle(ctx context.Context, b Bundle) error
	DeleteAgent(ctx context.Context, id uuid.UUID) error
	GC(ctx context.Context) (GCResult, error)

	// GetLineage returns the chain from the root ancestor to id,
	// root-first. It fails with an *immerr.AssetNotFoundError (kind
	// agent) if an intermediate parent_id is non-null but unresolvable.
	GetLineage(ctx context.Context, id uuid.UUID) ([]*asset.Agent, error)

	ListAgents(ctx context.Context, limit, offset int, name string) ([]*asset.Agent, error)
	CountAgents(ctx context.Context, name string) (int, error)
	FindByName(ctx context.Context, name string) (*asset.Agent, bool, error)

	Close()
}

// GCResult reports how many rows each of gc's three deletes removed.
type GCResult struct {
	MessagesDeleted      int64
	ConversationsDeleted int64
	TextAssetsDeleted    int64
}
