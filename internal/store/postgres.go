package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability/internal/db"
	"github.com/sells-group/walkability/internal/reference"
)

// PostgresStore implements Store backed by a pgx pool.
type PostgresStore struct {
	core
	pool db.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to Postgres and returns a store.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: connect postgres")
	}
	return NewPostgresFromPool(pool), nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{core: newCore(pgxQuerier{pool: pool}, postgresDialect), pool: pool}
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "store: ping postgres")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

// SeedCounties bulk-loads county names with zero statistics.
func (s *PostgresStore) SeedCounties(ctx context.Context, entries []reference.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	now := s.now()
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.StateFIPS, e.CountyFIPS, e.Name, 0.0, 0, int64(0), int64(0), now}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "counties",
		Columns:      []string{"state_fips", "county_fips", "name", "avg_walkability", "block_group_count", "population", "housing_units", "updated_at"},
		ConflictKeys: []string{"state_fips", "county_fips"},
		UpdateCols:   []string{"name"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: seed counties")
	}
	return int(n), nil
}

type pgxQuerier struct {
	pool db.Pool
}

func (q pgxQuerier) exec(ctx context.Context, query string, args ...any) error {
	_, err := q.pool.Exec(ctx, query, args...)
	return err
}

func (q pgxQuerier) query(ctx context.Context, query string, args ...any) (rows, error) {
	return q.pool.Query(ctx, query, args...)
}

func (q pgxQuerier) scanOne(ctx context.Context, query string, args []any, dest ...any) error {
	err := q.pool.QueryRow(ctx, query, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
