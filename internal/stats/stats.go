// Package stats derives state-level projections and recommendations from
// stored walkability averages.
package stats

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/reference"
	"github.com/sells-group/walkability/internal/store"
)

const (
	minForecastYears = 1
	maxForecastYears = 50
	// convergenceYears is the horizon over which a state closes half of its
	// gap to the national mean.
	convergenceYears   = 20.0
	recommendationTopN = 15
)

// Forecast projects each state's average score years ahead by drifting it
// toward the block-group weighted national mean. years is clamped to 1..50.
// Every state with data is returned, followed by the remaining states and DC
// with zeros, so the result always covers the full set.
func Forecast(states []model.StateAverage, years int) []model.StateForecast {
	years = min(max(years, minForecastYears), maxForecastYears)
	factor := min(max(float64(years)/convergenceYears, 0), 1)

	var (
		total    int
		weighted float64
		withData []model.StateAverage
	)
	for _, s := range states {
		if s.StateFIPS == "" || s.BlockGroupCount <= 0 {
			continue
		}
		total += s.BlockGroupCount
		weighted += s.AvgWalkability * float64(s.BlockGroupCount)
		withData = append(withData, s)
	}

	out := make([]model.StateForecast, 0, len(reference.States)+len(withData))
	seen := make(map[string]bool, len(withData))
	if total > 0 {
		mean := weighted / float64(total)
		for _, s := range withData {
			drift := (mean - s.AvgWalkability) * 0.5 * factor
			out = append(out, model.StateForecast{
				StateFIPS:       s.StateFIPS,
				Abbr:            abbr(s.StateFIPS),
				Current:         s.AvgWalkability,
				Projected:       s.AvgWalkability + drift,
				BlockGroupCount: s.BlockGroupCount,
			})
			seen[s.StateFIPS] = true
		}
	}
	for _, st := range reference.States {
		if !seen[st.FIPS] {
			out = append(out, model.StateForecast{StateFIPS: st.FIPS, Abbr: st.Abbr})
		}
	}
	return out
}

// Recommend returns the 15 lowest-scoring states with data, lowest first,
// each with a priority band and suggested focus.
func Recommend(states []model.StateAverage) []model.StateRecommendation {
	var out []model.StateRecommendation
	for _, s := range states {
		if s.StateFIPS == "" || s.BlockGroupCount <= 0 {
			continue
		}
		p, text := recommendation(s.AvgWalkability)
		out = append(out, model.StateRecommendation{
			StateFIPS:      s.StateFIPS,
			Abbr:           abbr(s.StateFIPS),
			CurrentScore:   s.AvgWalkability,
			Priority:       p,
			Recommendation: text,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CurrentScore < out[j].CurrentScore
	})
	if len(out) > recommendationTopN {
		out = out[:recommendationTopN]
	}
	return out
}

func recommendation(score float64) (model.Priority, string) {
	switch {
	case score < 5:
		return model.PriorityHigh, "Prioritize transit expansion, mixed-use development, and pedestrian infrastructure."
	case score < 10:
		return model.PriorityModerate, "Focus on intersection density, transit proximity, and land-use diversity."
	case score < 15:
		return model.PriorityMaintain, "Continue current policies; consider incremental improvements."
	default:
		return model.PriorityExemplary, "Share best practices with other states."
	}
}

func abbr(fips string) string {
	if st, ok := reference.StateByFIPS(fips); ok {
		return st.Abbr
	}
	return fips
}

// Report bundles everything the stats command prints.
type Report struct {
	Summary         *model.Summary              `json:"summary"`
	States          []model.StateAverage        `json:"states"`
	Forecast        []model.StateForecast       `json:"forecast,omitempty"`
	Recommendations []model.StateRecommendation `json:"recommendations"`
}

// Build reads the national summary and state averages from r and derives the
// forecast (when years > 0) and recommendations.
func Build(ctx context.Context, r store.Reader, scope store.SummaryFilter, years int) (*Report, error) {
	summary, err := r.Summary(ctx, scope)
	if err != nil {
		return nil, eris.Wrap(err, "stats: summary")
	}
	states, err := r.StateAverages(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "stats: state averages")
	}

	rep := &Report{
		Summary:         summary,
		States:          states,
		Recommendations: Recommend(states),
	}
	if years > 0 {
		rep.Forecast = Forecast(states, years)
	}
	return rep, nil
}
