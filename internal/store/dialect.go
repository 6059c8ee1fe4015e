package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/walkability/internal/reference"
)

// dialect carries the SQL that differs between the supported databases.
type dialect struct {
	name string

	// bind renders the n-th (1-based) placeholder.
	bind func(n int) string
	// intCast wraps an integer-valued expression so it scans into int64.
	intCast func(expr string) string
	// bucketExpr is the 5-point score bucket index of a block group row.
	bucketExpr string

	upsertBlockGroup string
	upsertCounty     string
	seedCounty       string
}

func dollarBind(n int) string { return "$" + strconv.Itoa(n) }
func questionBind(int) string { return "?" }

const blockGroupColumns = "fips, state_fips, county_fips, tract_fips, walkability_score, population, housing_units"

const countyColumns = "state_fips, county_fips, name, avg_walkability, block_group_count, population, housing_units"

const runColumns = "id, source, status, started_at, completed_at, block_groups, counties, COALESCE(error_message, '')"

var postgresDialect = dialect{
	name:       DriverPostgres,
	bind:       dollarBind,
	intCast:    func(expr string) string { return "CAST(" + expr + " AS BIGINT)" },
	bucketExpr: "CAST(FLOOR(walkability_score / 5) AS BIGINT)",
	upsertBlockGroup: `INSERT INTO block_groups (` + blockGroupColumns + `, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (fips) DO UPDATE SET
	walkability_score = EXCLUDED.walkability_score,
	population = EXCLUDED.population,
	housing_units = EXCLUDED.housing_units,
	updated_at = EXCLUDED.updated_at
WHERE (block_groups.walkability_score, block_groups.population, block_groups.housing_units)
	IS DISTINCT FROM (EXCLUDED.walkability_score, EXCLUDED.population, EXCLUDED.housing_units)`,
	upsertCounty: `INSERT INTO counties (` + countyColumns + `, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (state_fips, county_fips) DO UPDATE SET
	name = EXCLUDED.name,
	avg_walkability = EXCLUDED.avg_walkability,
	block_group_count = EXCLUDED.block_group_count,
	population = EXCLUDED.population,
	housing_units = EXCLUDED.housing_units,
	updated_at = EXCLUDED.updated_at
WHERE (counties.name, counties.avg_walkability, counties.block_group_count, counties.population, counties.housing_units)
	IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.avg_walkability, EXCLUDED.block_group_count, EXCLUDED.population, EXCLUDED.housing_units)`,
}

var sqliteDialect = dialect{
	name:       DriverSQLite,
	bind:       questionBind,
	intCast:    func(expr string) string { return "CAST(" + expr + " AS INTEGER)" },
	// CAST truncates toward zero; step negative fractions down to match FLOOR.
	bucketExpr: "(CAST(walkability_score / 5 AS INTEGER) - (walkability_score < 0 AND walkability_score / 5 <> CAST(walkability_score / 5 AS INTEGER)))",
	upsertBlockGroup: `INSERT INTO block_groups (` + blockGroupColumns + `, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (fips) DO UPDATE SET
	walkability_score = excluded.walkability_score,
	population = excluded.population,
	housing_units = excluded.housing_units,
	updated_at = excluded.updated_at
WHERE block_groups.walkability_score IS NOT excluded.walkability_score
	OR block_groups.population IS NOT excluded.population
	OR block_groups.housing_units IS NOT excluded.housing_units`,
	upsertCounty: `INSERT INTO counties (` + countyColumns + `, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (state_fips, county_fips) DO UPDATE SET
	name = excluded.name,
	avg_walkability = excluded.avg_walkability,
	block_group_count = excluded.block_group_count,
	population = excluded.population,
	housing_units = excluded.housing_units,
	updated_at = excluded.updated_at
WHERE counties.name IS NOT excluded.name
	OR counties.avg_walkability IS NOT excluded.avg_walkability
	OR counties.block_group_count IS NOT excluded.block_group_count
	OR counties.population IS NOT excluded.population
	OR counties.housing_units IS NOT excluded.housing_units`,
	seedCounty: `INSERT INTO counties (` + countyColumns + `, updated_at)
VALUES (?, ?, ?, 0, 0, 0, 0, ?)
ON CONFLICT (state_fips, county_fips) DO UPDATE SET name = excluded.name
WHERE counties.name IS NOT excluded.name`,
}

// MySQL evaluates ON DUPLICATE KEY assignments left to right, so updated_at
// is assigned before the columns it compares against.
var mysqlDialect = dialect{
	name:       DriverMySQL,
	bind:       questionBind,
	intCast:    func(expr string) string { return "CAST(" + expr + " AS SIGNED)" },
	bucketExpr: "CAST(FLOOR(walkability_score / 5) AS SIGNED)",
	upsertBlockGroup: `INSERT INTO block_groups (` + blockGroupColumns + `, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	updated_at = IF(walkability_score <=> VALUES(walkability_score)
		AND population <=> VALUES(population)
		AND housing_units <=> VALUES(housing_units), updated_at, VALUES(updated_at)),
	walkability_score = VALUES(walkability_score),
	population = VALUES(population),
	housing_units = VALUES(housing_units)`,
	upsertCounty: `INSERT INTO counties (` + countyColumns + `, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	updated_at = IF(name <=> VALUES(name)
		AND avg_walkability <=> VALUES(avg_walkability)
		AND block_group_count <=> VALUES(block_group_count)
		AND population <=> VALUES(population)
		AND housing_units <=> VALUES(housing_units), updated_at, VALUES(updated_at)),
	name = VALUES(name),
	avg_walkability = VALUES(avg_walkability),
	block_group_count = VALUES(block_group_count),
	population = VALUES(population),
	housing_units = VALUES(housing_units)`,
	seedCounty: `INSERT INTO counties (` + countyColumns + `, updated_at)
VALUES (?, ?, ?, 0, 0, 0, 0, ?)
ON DUPLICATE KEY UPDATE name = VALUES(name)`,
}

// nationalFilter restricts rows to the 50 states plus DC.
var nationalFilter = func() string {
	codes := reference.AllStateFIPS()
	quoted := make([]string, len(codes))
	for i, c := range codes {
		quoted[i] = "'" + c + "'"
	}
	return "state_fips IN (" + strings.Join(quoted, ", ") + ")"
}()

// scopeWhere renders the WHERE clause and arguments of a SummaryFilter.
func (d dialect) scopeWhere(f SummaryFilter) (string, []any) {
	switch {
	case f.StateFIPS == "":
		return " WHERE " + nationalFilter, nil
	case f.CountyFIPS == "":
		return " WHERE state_fips = " + d.bind(1), []any{f.StateFIPS}
	default:
		return fmt.Sprintf(" WHERE state_fips = %s AND county_fips = %s", d.bind(1), d.bind(2)),
			[]any{f.StateFIPS, f.CountyFIPS}
	}
}

func (d dialect) summaryQuery(f SummaryFilter) (string, []any) {
	where, args := d.scopeWhere(f)
	q := "SELECT COALESCE(AVG(walkability_score), 0), COUNT(*), " +
		d.intCast("COALESCE(SUM(population), 0)") +
		" FROM block_groups" + where
	return q, args
}

func (d dialect) medianQuery(f SummaryFilter, offset int) (string, []any) {
	where, args := d.scopeWhere(f)
	q := "SELECT walkability_score FROM block_groups" + where +
		" ORDER BY walkability_score LIMIT 1 OFFSET " + d.bind(len(args)+1)
	return q, append(args, offset)
}

func (d dialect) bucketQuery(f SummaryFilter) (string, []any) {
	where, args := d.scopeWhere(f)
	q := "SELECT " + d.bucketExpr + " AS bucket_key, COUNT(*) FROM block_groups" + where +
		" GROUP BY bucket_key ORDER BY bucket_key"
	return q, args
}

func (d dialect) listCountiesQuery(f CountyFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.StateFIPS != "" {
		args = append(args, f.StateFIPS)
		conds = append(conds, "state_fips = "+d.bind(len(args)))
	}
	if f.WithDataOnly {
		conds = append(conds, "(block_group_count > 0 OR population > 0)")
	}

	q := "SELECT " + countyColumns + ", updated_at FROM counties"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Sort == SortByWalkability {
		q += " ORDER BY avg_walkability DESC, name, state_fips, county_fips"
	} else {
		q += " ORDER BY name, state_fips, county_fips"
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += " LIMIT " + d.bind(len(args))
	}
	return q, args
}

func (d dialect) getBlockGroupQuery() string {
	return "SELECT " + blockGroupColumns + " FROM block_groups WHERE fips = " + d.bind(1)
}

func (d dialect) stateAveragesQuery() string {
	return "SELECT state_fips, AVG(walkability_score), COUNT(*) FROM block_groups GROUP BY state_fips ORDER BY state_fips"
}

func (d dialect) startRunQuery() string {
	return fmt.Sprintf(
		"INSERT INTO import_runs (id, source, status, started_at, block_groups, counties) VALUES (%s, %s, %s, %s, 0, 0)",
		d.bind(1), d.bind(2), d.bind(3), d.bind(4),
	)
}

func (d dialect) completeRunQuery() string {
	return fmt.Sprintf(
		"UPDATE import_runs SET status = %s, completed_at = %s, block_groups = %s, counties = %s WHERE id = %s",
		d.bind(1), d.bind(2), d.bind(3), d.bind(4), d.bind(5),
	)
}

func (d dialect) failRunQuery() string {
	return fmt.Sprintf(
		"UPDATE import_runs SET status = %s, completed_at = %s, error_message = %s WHERE id = %s",
		d.bind(1), d.bind(2), d.bind(3), d.bind(4),
	)
}

func (d dialect) listRunsQuery() string {
	return "SELECT " + runColumns + " FROM import_runs ORDER BY started_at DESC, id LIMIT " + d.bind(1)
}
