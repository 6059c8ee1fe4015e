package store

import (
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	*sqlStore
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, eris.New("sqlite: empty database path")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; the upsert loop is sequential anyway.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqlStore: newSQLStore(db, sqliteDialect, sqliteSchema)}, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS block_groups (
	fips              TEXT PRIMARY KEY,
	state_fips        TEXT NOT NULL,
	county_fips       TEXT NOT NULL,
	tract_fips        TEXT NOT NULL,
	walkability_score REAL NOT NULL,
	population        INTEGER NOT NULL DEFAULT 0,
	housing_units     INTEGER NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
)`,
	`CREATE INDEX IF NOT EXISTS idx_block_groups_county ON block_groups(state_fips, county_fips)`,
	`CREATE INDEX IF NOT EXISTS idx_block_groups_score ON block_groups(walkability_score)`,
	`CREATE TABLE IF NOT EXISTS counties (
	state_fips        TEXT NOT NULL,
	county_fips       TEXT NOT NULL,
	name              TEXT NOT NULL,
	avg_walkability   REAL NOT NULL DEFAULT 0,
	block_group_count INTEGER NOT NULL DEFAULT 0,
	population        INTEGER NOT NULL DEFAULT 0,
	housing_units     INTEGER NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (state_fips, county_fips)
)`,
	`CREATE TABLE IF NOT EXISTS import_runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    DATETIME NOT NULL,
	completed_at  DATETIME,
	block_groups  INTEGER NOT NULL DEFAULT 0,
	counties      INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_import_runs_started ON import_runs(started_at)`,
}
