package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/immagent/immagent/pkg/asset"
	"github.com/immagent/immagent/pkg/immerr"
)

// GetLineage climbs parent_id from id to the root via one recursive
// self-join, then reverses the result to return root-first. Every walked
// agent is put in the cache, so later GetAgent calls for any of them are
// served from it; GetLineage itself always runs the query.
func (s *PGStore) GetLineage(ctx context.Context, id uuid.UUID) ([]*asset.Agent, error) {
	rows, err := s.db.Query(ctx, lineageQuery, id)
	if err != nil {
		return nil, errors.Wrap(err, "query lineage")
	}
	defer rows.Close()

	var chain []*asset.Agent
	for rows.Next() {
		a, ok, err := s.scanAgentRow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan lineage row")
		}
		if !ok {
			continue
		}
		chain = append(chain, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate lineage rows")
	}

	if len(chain) == 0 {
		return nil, immerr.NewAssetNotFound(immerr.AssetKindAgent, id)
	}

	// chain currently runs from id toward the root: chain[0] is id itself,
	// chain[len-1] is the furthest ancestor the recursive join reached. If
	// that furthest ancestor still names a non-null parent_id, the join
	// stopped there because the parent row doesn't exist — a broken
	// pointer the ON DELETE SET NULL foreign key should make impossible in
	// practice, but one a row inserted outside this package could still
	// produce.
	if broken := chain[len(chain)-1].ParentID; broken != nil {
		return nil, immerr.NewAssetNotFound(immerr.AssetKindAgent, *broken)
	}

	// The contract is root-first; the query walked the other direction.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	for _, a := range chain {
		s.cache.Put(a)
	}

	return chain, nil
}

func (s *PGStore) ListAgents(ctx context.Context, limit, offset int, name string) ([]*asset.Agent, error) {
	query := `
		SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
		FROM agents`
	args := []any{}
	if name != "" {
		query += fmt.Sprintf(" WHERE name ILIKE $%d", len(args)+1)
		args = append(args, "%"+name+"%")
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list agents")
	}
	defer rows.Close()

	var agents []*asset.Agent
	for rows.Next() {
		a, ok, err := s.scanAgentRow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan agent row")
		}
		if ok {
			s.cache.Put(a)
			agents = append(agents, a)
		}
	}
	return agents, rows.Err()
}

func (s *PGStore) CountAgents(ctx context.Context, name string) (int, error) {
	query := `SELECT COUNT(*) FROM agents`
	args := []any{}
	if name != "" {
		query += ` WHERE name ILIKE $1`
		args = append(args, "%"+name+"%")
	}
	var count int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "count agents")
	}
	return count, nil
}

// FindByName performs an exact, case-sensitive match. ListAgents' name
// filter is intentionally different: a case-insensitive substring match,
// since that one serves interactive browsing rather than exact lookup.
func (s *PGStore) FindByName(ctx context.Context, name string) (*asset.Agent, bool, error) {
	a, found, err := s.scanAgentRow(s.db.QueryRow(ctx, `
		SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
		FROM agents WHERE name = $1
		ORDER BY created_at DESC LIMIT 1`, name))
	if err != nil || !found {
		return nil, found, err
	}
	s.cache.Put(a)
	return a, true, nil
}
