package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/reference"
)

// rows is the iteration surface shared by pgx.Rows and *sql.Rows.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// querier adapts a database handle to the statements core issues.
// scanOne returns ErrNotFound (wrapped) when the query yields no row.
type querier interface {
	exec(ctx context.Context, query string, args ...any) error
	query(ctx context.Context, query string, args ...any) (rows, error)
	scanOne(ctx context.Context, query string, args []any, dest ...any) error
}

// core implements Writer, RunRecorder and Reader on top of a querier.
type core struct {
	q   querier
	d   dialect
	now func() time.Time
}

func newCore(q querier, d dialect) core {
	return core{q: q, d: d, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertBlockGroup inserts or updates one block group keyed by FIPS.
func (c *core) UpsertBlockGroup(ctx context.Context, bg model.BlockGroup) error {
	err := c.q.exec(ctx, c.d.upsertBlockGroup,
		bg.FIPS, bg.StateFIPS, bg.CountyFIPS, bg.TractFIPS,
		bg.WalkabilityScore, bg.Population, bg.HousingUnits, c.now(),
	)
	if err != nil {
		return eris.Wrapf(err, "store: upsert block group %s", bg.FIPS)
	}
	return nil
}

// UpsertCounty inserts or overwrites the statistics of one county.
func (c *core) UpsertCounty(ctx context.Context, agg model.CountyAggregate) error {
	err := c.q.exec(ctx, c.d.upsertCounty,
		agg.StateFIPS, agg.CountyFIPS, agg.Name, agg.AvgWalkability,
		agg.BlockGroupCount, agg.Population, agg.HousingUnits, c.now(),
	)
	if err != nil {
		return eris.Wrapf(err, "store: upsert county %s", agg.FIPS())
	}
	return nil
}

// StartRun records a new running import and returns its ID.
func (c *core) StartRun(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	if err := c.q.exec(ctx, c.d.startRunQuery(), id, source, string(model.ImportStatusRunning), c.now()); err != nil {
		return "", eris.Wrap(err, "store: start run")
	}
	return id, nil
}

// CompleteRun marks a run complete with its final counts.
func (c *core) CompleteRun(ctx context.Context, id string, result model.ImportResult) error {
	err := c.q.exec(ctx, c.d.completeRunQuery(),
		string(model.ImportStatusComplete), c.now(), result.BlockGroups, result.Counties, id,
	)
	if err != nil {
		return eris.Wrapf(err, "store: complete run %s", id)
	}
	return nil
}

// FailRun marks a run failed and keeps the error text.
func (c *core) FailRun(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := c.q.exec(ctx, c.d.failRunQuery(), string(model.ImportStatusFailed), c.now(), msg, id); err != nil {
		return eris.Wrapf(err, "store: fail run %s", id)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (c *core) ListRuns(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rs, err := c.q.query(ctx, c.d.listRunsQuery(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rs.Close()

	var runs []model.ImportRun
	for rs.Next() {
		var (
			r      model.ImportRun
			status string
		)
		if err := rs.Scan(&r.ID, &r.Source, &status, &r.StartedAt, &r.CompletedAt,
			&r.BlockGroups, &r.Counties, &r.Error); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		r.Status = model.ImportStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rs.Err(), "store: iterate runs")
}

// ListCounties returns counties matching the filter.
func (c *core) ListCounties(ctx context.Context, f CountyFilter) ([]model.County, error) {
	q, args := c.d.listCountiesQuery(f)
	rs, err := c.q.query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list counties")
	}
	defer rs.Close()

	var out []model.County
	for rs.Next() {
		var co model.County
		if err := rs.Scan(&co.StateFIPS, &co.CountyFIPS, &co.Name, &co.AvgWalkability,
			&co.BlockGroupCount, &co.Population, &co.HousingUnits, &co.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan county")
		}
		out = append(out, co)
	}
	return out, eris.Wrap(rs.Err(), "store: iterate counties")
}

// GetBlockGroup returns one block group by its 12-digit code.
func (c *core) GetBlockGroup(ctx context.Context, fips string) (*model.BlockGroup, error) {
	var bg model.BlockGroup
	err := c.q.scanOne(ctx, c.d.getBlockGroupQuery(), []any{fips},
		&bg.FIPS, &bg.StateFIPS, &bg.CountyFIPS, &bg.TractFIPS,
		&bg.WalkabilityScore, &bg.Population, &bg.HousingUnits,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: get block group %s", fips)
	}
	return &bg, nil
}

// Summary computes mean, median, count, population and buckets for a scope.
func (c *core) Summary(ctx context.Context, f SummaryFilter) (*model.Summary, error) {
	var (
		avg   float64
		count int
		pop   int64
	)
	q, args := c.d.summaryQuery(f)
	if err := c.q.scanOne(ctx, q, args, &avg, &count, &pop); err != nil {
		return nil, eris.Wrap(err, "store: summary")
	}

	s := &model.Summary{Buckets: []model.ScoreBucket{}}
	if count == 0 {
		return s, nil
	}
	s.AvgWalkability = avg
	s.BlockGroupCount = count
	s.Population = pop

	q, args = c.d.medianQuery(f, count/2)
	if err := c.q.scanOne(ctx, q, args, &s.MedianWalkability); err != nil {
		return nil, eris.Wrap(err, "store: summary median")
	}

	buckets, err := c.Distribution(ctx, f)
	if err != nil {
		return nil, err
	}
	s.Buckets = buckets
	return s, nil
}

// Distribution returns 5-point score buckets for a scope, lowest first.
// Empty buckets are omitted.
func (c *core) Distribution(ctx context.Context, f SummaryFilter) ([]model.ScoreBucket, error) {
	q, args := c.d.bucketQuery(f)
	rs, err := c.q.query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: distribution")
	}
	defer rs.Close()

	buckets := []model.ScoreBucket{}
	for rs.Next() {
		var key int64
		var n int
		if err := rs.Scan(&key, &n); err != nil {
			return nil, eris.Wrap(err, "store: scan bucket")
		}
		buckets = append(buckets, newBucket(int(key), n))
	}
	return buckets, eris.Wrap(rs.Err(), "store: iterate buckets")
}

func newBucket(key, count int) model.ScoreBucket {
	lo := key * 5
	return model.ScoreBucket{
		Label: fmt.Sprintf("%d-%d", lo, lo+5),
		Min:   lo,
		Max:   lo + 5,
		Count: count,
	}
}

// StateAverages returns the block-group average of every state with data.
func (c *core) StateAverages(ctx context.Context) ([]model.StateAverage, error) {
	rs, err := c.q.query(ctx, c.d.stateAveragesQuery())
	if err != nil {
		return nil, eris.Wrap(err, "store: state averages")
	}
	defer rs.Close()

	var out []model.StateAverage
	for rs.Next() {
		var sa model.StateAverage
		if err := rs.Scan(&sa.StateFIPS, &sa.AvgWalkability, &sa.BlockGroupCount); err != nil {
			return nil, eris.Wrap(err, "store: scan state average")
		}
		if st, ok := reference.StateByFIPS(sa.StateFIPS); ok {
			sa.Abbr = st.Abbr
		}
		out = append(out, sa)
	}
	return out, eris.Wrap(rs.Err(), "store: iterate state averages")
}
