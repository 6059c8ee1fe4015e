package store

import (
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability/internal/db"
)

// MySQLStore implements Store on MySQL or MariaDB.
type MySQLStore struct {
	*sqlStore
}

var _ Store = (*MySQLStore)(nil)

// NewMySQL opens a MySQL connection pool. The DSN uses the driver's
// user:pass@tcp(host:port)/dbname form; parseTime is always enabled.
func NewMySQL(dsn string, poolCfg *db.PoolConfig) (*MySQLStore, error) {
	normalized, err := mysqlDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: open")
	}

	maxConns := 4
	if poolCfg != nil && poolCfg.MaxConns > 0 {
		maxConns = int(poolCfg.MaxConns)
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &MySQLStore{sqlStore: newSQLStore(conn, mysqlDialect, mysqlSchema)}, nil
}

// mysqlDSN parses dsn and forces the options the store relies on.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", eris.Wrap(err, "mysql: parse dsn")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS block_groups (
	fips              VARCHAR(12) NOT NULL PRIMARY KEY,
	state_fips        CHAR(2) NOT NULL,
	county_fips       CHAR(3) NOT NULL,
	tract_fips        VARCHAR(11) NOT NULL,
	walkability_score DOUBLE NOT NULL,
	population        BIGINT NOT NULL DEFAULT 0,
	housing_units     BIGINT NOT NULL DEFAULT 0,
	updated_at        DATETIME(6) NOT NULL,
	INDEX idx_block_groups_county (state_fips, county_fips),
	INDEX idx_block_groups_score (walkability_score)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS counties (
	state_fips        CHAR(2) NOT NULL,
	county_fips       CHAR(3) NOT NULL,
	name              VARCHAR(255) NOT NULL,
	avg_walkability   DOUBLE NOT NULL DEFAULT 0,
	block_group_count INT NOT NULL DEFAULT 0,
	population        BIGINT NOT NULL DEFAULT 0,
	housing_units     BIGINT NOT NULL DEFAULT 0,
	updated_at        DATETIME(6) NOT NULL,
	PRIMARY KEY (state_fips, county_fips)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS import_runs (
	id            CHAR(36) NOT NULL PRIMARY KEY,
	source        VARCHAR(2048) NOT NULL,
	status        VARCHAR(16) NOT NULL,
	started_at    DATETIME(6) NOT NULL,
	completed_at  DATETIME(6) NULL,
	block_groups  INT NOT NULL DEFAULT 0,
	counties      INT NOT NULL DEFAULT 0,
	error_message TEXT NULL,
	INDEX idx_import_runs_started (started_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
