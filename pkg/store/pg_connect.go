package store

import (
	"context"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/immagent/immagent/pkg/cache"
	"github.com/immagent/immagent/pkg/config"
)

// queryer is the slice of pgxpool.Pool's method set PGStore actually
// needs. Splitting it out lets tests substitute pgxmock's mock pool,
// which implements the same pgx query surface without opening a real
// connection.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore is the Postgres-backed Store. Reads are cache-first through a
// WeakCache; writes go straight to the backend inside one transaction and
// prime the cache only once the transaction commits.
type PGStore struct {
	db    queryer
	pool  *pgxpool.Pool // non-nil only when PGStore owns the pool (Connect); nil under a mocked queryer
	cache cache.Cache
}

// Connect opens a traced connection pool sized per cfg and wraps it in a
// PGStore backed by a fresh WeakCache. Call InitSchema before first use.
func Connect(ctx context.Context, dsn string, cfg config.PoolConfig) (*PGStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}

	poolConfig.MinConns = cfg.MinSize
	poolConfig.MaxConns = cfg.MaxSize
	poolConfig.MaxConnIdleTime = cfg.MaxInactiveConnectionLifetime
	poolConfig.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName())

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	return &PGStore{db: pool, pool: pool, cache: cache.NewWeakCache()}, nil
}

// NewWithPool wraps an already-open pool (owned by the caller) in a PGStore.
func NewWithPool(pool *pgxpool.Pool, c cache.Cache) *PGStore {
	if c == nil {
		c = cache.NewWeakCache()
	}
	return &PGStore{db: pool, cache: c}
}

// NewWithQueryer wraps any queryer implementation — principally
// pgxmock.PgxPoolIface in tests — in a PGStore. Close is a no-op; the
// caller owns the underlying mock or pool's lifecycle.
func NewWithQueryer(db queryer, c cache.Cache) *PGStore {
	if c == nil {
		c = cache.NewWeakCache()
	}
	return &PGStore{db: db, cache: c}
}

func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PGStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return errors.Wrap(err, "init schema")
	}
	return nil
}
