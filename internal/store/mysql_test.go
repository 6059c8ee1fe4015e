package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSN_ForcesParseTime(t *testing.T) {
	dsn, err := mysqlDSN("walk:secret@tcp(db.internal:3306)/walkability")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "tcp(db.internal:3306)/walkability")
}

func TestMySQLDSN_Invalid(t *testing.T) {
	_, err := mysqlDSN("not a dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql: parse dsn")
}

func TestDialect_Placeholders(t *testing.T) {
	q, args := postgresDialect.listCountiesQuery(CountyFilter{StateFIPS: "06", Limit: 10})
	assert.Contains(t, q, "state_fips = $1")
	assert.Contains(t, q, "LIMIT $2")
	assert.Equal(t, []any{"06", 10}, args)

	q, args = mysqlDialect.listCountiesQuery(CountyFilter{StateFIPS: "06", Limit: 10})
	assert.Contains(t, q, "state_fips = ?")
	assert.Contains(t, q, "LIMIT ?")
	assert.Equal(t, []any{"06", 10}, args)
}

func TestDialect_ScopeWhere(t *testing.T) {
	where, args := mysqlDialect.scopeWhere(SummaryFilter{})
	assert.Contains(t, where, "state_fips IN ('01', ")
	assert.Contains(t, where, "'11'")
	assert.NotContains(t, where, "'72'")
	assert.Empty(t, args)

	where, args = postgresDialect.scopeWhere(SummaryFilter{StateFIPS: "48", CountyFIPS: "113"})
	assert.Equal(t, " WHERE state_fips = $1 AND county_fips = $2", where)
	assert.Equal(t, []any{"48", "113"}, args)
}

func TestMySQLDialect_UpdatedAtAssignedFirst(t *testing.T) {
	for _, q := range []string{mysqlDialect.upsertBlockGroup, mysqlDialect.upsertCounty} {
		assert.Regexp(t, `ON DUPLICATE KEY UPDATE\s+updated_at = IF\(`, q)
	}
}

func TestNewBucket(t *testing.T) {
	b := newBucket(3, 7)
	assert.Equal(t, "15-20", b.Label)
	assert.Equal(t, 15, b.Min)
	assert.Equal(t, 20, b.Max)
	assert.Equal(t, 7, b.Count)
}
