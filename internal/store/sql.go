package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability/internal/reference"
)

// sqlStore is the database/sql implementation shared by SQLite and MySQL.
type sqlStore struct {
	core
	db     *sql.DB
	schema []string
}

func newSQLStore(db *sql.DB, d dialect, schema []string) *sqlStore {
	return &sqlStore{core: newCore(sqlQuerier{db: db}, d), db: db, schema: schema}
}

// Migrate creates tables and indexes if they don't exist.
func (s *sqlStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "%s: migrate", s.d.name)
		}
	}
	return nil
}

// Ping checks the connection.
func (s *sqlStore) Ping(ctx context.Context) error {
	return eris.Wrapf(s.db.PingContext(ctx), "%s: ping", s.d.name)
}

// Close closes the database handle.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// SeedCounties inserts county names with zero statistics in one transaction.
// Rows that already exist only have their name refreshed.
func (s *sqlStore) SeedCounties(ctx context.Context, entries []reference.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "%s: seed counties: begin tx", s.d.name)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.d.seedCounty)
	if err != nil {
		return 0, eris.Wrapf(err, "%s: seed counties: prepare", s.d.name)
	}
	defer stmt.Close() //nolint:errcheck

	now := s.now()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.StateFIPS, e.CountyFIPS, e.Name, now); err != nil {
			return 0, eris.Wrapf(err, "%s: seed county %s%s", s.d.name, e.StateFIPS, e.CountyFIPS)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "%s: seed counties: commit", s.d.name)
	}
	return len(entries), nil
}

type sqlQuerier struct {
	db *sql.DB
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

func (q sqlQuerier) exec(ctx context.Context, query string, args ...any) error {
	_, err := q.db.ExecContext(ctx, query, args...)
	return err
}

func (q sqlQuerier) query(ctx context.Context, query string, args ...any) (rows, error) {
	rs, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rs}, nil
}

func (q sqlQuerier) scanOne(ctx context.Context, query string, args []any, dest ...any) error {
	err := q.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
