package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/reference"
	"github.com/sells-group/walkability/internal/store"
)

func findForecast(t *testing.T, out []model.StateForecast, fips string) model.StateForecast {
	t.Helper()
	for _, f := range out {
		if f.StateFIPS == fips {
			return f
		}
	}
	t.Fatalf("state %s missing from forecast", fips)
	return model.StateForecast{}
}

func TestForecast_DriftsTowardWeightedMean(t *testing.T) {
	states := []model.StateAverage{
		{StateFIPS: "01", AvgWalkability: 6, BlockGroupCount: 300},
		{StateFIPS: "36", AvgWalkability: 14, BlockGroupCount: 100},
	}
	// Weighted mean = (6*300 + 14*100) / 400 = 8.
	out := Forecast(states, 20)
	assert.Len(t, out, len(reference.States))

	al := findForecast(t, out, "01")
	assert.Equal(t, "AL", al.Abbr)
	assert.InDelta(t, 6.0, al.Current, 1e-9)
	assert.InDelta(t, 7.0, al.Projected, 1e-9)
	assert.Equal(t, 300, al.BlockGroupCount)

	ny := findForecast(t, out, "36")
	assert.InDelta(t, 11.0, ny.Projected, 1e-9)
}

func TestForecast_YearsClamped(t *testing.T) {
	states := []model.StateAverage{
		{StateFIPS: "01", AvgWalkability: 0, BlockGroupCount: 1},
		{StateFIPS: "02", AvgWalkability: 20, BlockGroupCount: 1},
	}
	// mean 10; factor for 10 years = 0.5 → drift 2.5.
	assert.InDelta(t, 2.5, findForecast(t, Forecast(states, 10), "01").Projected, 1e-9)
	// years <= 0 clamps to 1 → factor 0.05 → drift 0.25.
	assert.InDelta(t, 0.25, findForecast(t, Forecast(states, -3), "01").Projected, 1e-9)
	// Beyond 20 years the factor saturates at 1.
	assert.InDelta(t, 5.0, findForecast(t, Forecast(states, 500), "01").Projected, 1e-9)
}

func TestForecast_NoData(t *testing.T) {
	out := Forecast(nil, 5)
	require.Len(t, out, len(reference.States))
	for _, f := range out {
		assert.Zero(t, f.Current)
		assert.Zero(t, f.Projected)
		assert.Zero(t, f.BlockGroupCount)
	}
}

func TestForecast_KeepsNonStateData(t *testing.T) {
	out := Forecast([]model.StateAverage{{StateFIPS: "72", AvgWalkability: 9, BlockGroupCount: 4}}, 1)
	assert.Len(t, out, len(reference.States)+1)
	pr := findForecast(t, out, "72")
	assert.Equal(t, "72", pr.Abbr)
	assert.InDelta(t, 9.0, pr.Projected, 1e-9)
}

func TestRecommend(t *testing.T) {
	states := []model.StateAverage{
		{StateFIPS: "06", AvgWalkability: 16, BlockGroupCount: 10},
		{StateFIPS: "01", AvgWalkability: 4.9, BlockGroupCount: 10},
		{StateFIPS: "48", AvgWalkability: 9.99, BlockGroupCount: 10},
		{StateFIPS: "36", AvgWalkability: 10, BlockGroupCount: 10},
		{StateFIPS: "02", AvgWalkability: 1, BlockGroupCount: 0},
	}
	out := Recommend(states)
	require.Len(t, out, 4)

	assert.Equal(t, "AL", out[0].Abbr)
	assert.Equal(t, model.PriorityHigh, out[0].Priority)
	assert.Equal(t, model.PriorityModerate, out[1].Priority)
	assert.Equal(t, model.PriorityMaintain, out[2].Priority)
	assert.Equal(t, model.PriorityExemplary, out[3].Priority)
	assert.Equal(t, "Share best practices with other states.", out[3].Recommendation)
}

func TestRecommend_TopFifteen(t *testing.T) {
	var states []model.StateAverage
	for i, st := range reference.States {
		states = append(states, model.StateAverage{StateFIPS: st.FIPS, AvgWalkability: float64(50 - i), BlockGroupCount: 1})
	}
	out := Recommend(states)
	require.Len(t, out, 15)
	assert.Equal(t, "WY", out[0].Abbr)
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, out[i-1].CurrentScore, out[i].CurrentScore)
	}
}

type fakeReader struct {
	store.Reader
	summary *model.Summary
	states  []model.StateAverage
	err     error
}

func (f *fakeReader) Summary(context.Context, store.SummaryFilter) (*model.Summary, error) {
	return f.summary, f.err
}

func (f *fakeReader) StateAverages(context.Context) ([]model.StateAverage, error) {
	return f.states, nil
}

func TestBuild(t *testing.T) {
	r := &fakeReader{
		summary: &model.Summary{AvgWalkability: 9, BlockGroupCount: 2},
		states:  []model.StateAverage{{StateFIPS: "01", AvgWalkability: 9, BlockGroupCount: 2}},
	}

	rep, err := Build(context.Background(), r, store.SummaryFilter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Summary.BlockGroupCount)
	assert.Nil(t, rep.Forecast)
	require.Len(t, rep.Recommendations, 1)

	rep, err = Build(context.Background(), r, store.SummaryFilter{}, 10)
	require.NoError(t, err)
	assert.Len(t, rep.Forecast, len(reference.States))
}

func TestBuild_Error(t *testing.T) {
	_, err := Build(context.Background(), &fakeReader{err: errors.New("db down")}, store.SummaryFilter{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stats: summary")
}
