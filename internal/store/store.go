// Package store persists block groups, county aggregates and import runs in
// Postgres, SQLite or MySQL, and serves the read-side statistics.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability/internal/db"
	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/reference"
)

// ErrNotFound is returned (wrapped) when a requested row does not exist.
var ErrNotFound = eris.New("not found")

// Writer is the persistence side of an ingestion pass. Both upserts are
// idempotent: writing the same value twice leaves the same stored state.
type Writer interface {
	UpsertBlockGroup(ctx context.Context, bg model.BlockGroup) error
	UpsertCounty(ctx context.Context, c model.CountyAggregate) error
}

// Seeder pre-populates the county table with known names and zero statistics.
// Existing rows only have their name refreshed.
type Seeder interface {
	SeedCounties(ctx context.Context, entries []reference.Entry) (int, error)
}

// RunRecorder keeps the import_runs audit trail.
type RunRecorder interface {
	StartRun(ctx context.Context, source string) (string, error)
	CompleteRun(ctx context.Context, id string, result model.ImportResult) error
	FailRun(ctx context.Context, id string, cause error) error
}

// CountySort orders ListCounties results.
type CountySort string

const (
	SortByName        CountySort = "name"
	SortByWalkability CountySort = "walkability"
)

// CountyFilter specifies criteria for listing counties.
type CountyFilter struct {
	StateFIPS    string     `json:"state_fips,omitempty"`
	Sort         CountySort `json:"sort,omitempty"`
	Limit        int        `json:"limit,omitempty"` // 0 = no limit
	WithDataOnly bool       `json:"with_data_only,omitempty"`
}

// SummaryFilter scopes Summary. Empty StateFIPS means the 50 states plus DC.
type SummaryFilter struct {
	StateFIPS  string `json:"state_fips,omitempty"`
	CountyFIPS string `json:"county_fips,omitempty"`
}

// Reader serves stored data back out.
type Reader interface {
	ListCounties(ctx context.Context, f CountyFilter) ([]model.County, error)
	GetBlockGroup(ctx context.Context, fips string) (*model.BlockGroup, error)
	Summary(ctx context.Context, f SummaryFilter) (*model.Summary, error)
	Distribution(ctx context.Context, f SummaryFilter) ([]model.ScoreBucket, error)
	StateAverages(ctx context.Context) ([]model.StateAverage, error)
	ListRuns(ctx context.Context, limit int) ([]model.ImportRun, error)
}

// Store is the full persistence surface used by the CLI.
type Store interface {
	Writer
	Seeder
	RunRecorder
	Reader

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Config selects and configures the backing database.
type Config struct {
	Driver      string
	DatabaseURL string
	Pool        *db.PoolConfig
}

// Open connects to the configured database.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres, "postgresql", "pgx":
		s, err := NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite, "sqlite3":
		s, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMySQL:
		s, err := NewMySQL(cfg.DatabaseURL, cfg.Pool)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}
