package ingest

import (
	"sort"

	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/reference"
)

type countyKey struct {
	state  string
	county string
}

type countySums struct {
	score      float64
	count      int
	population int64
	housing    int64
}

// Aggregator accumulates per-county sums over one ingestion pass. It is not
// safe for concurrent use; each pass owns its own.
type Aggregator struct {
	sums map[countyKey]*countySums
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{sums: make(map[countyKey]*countySums)}
}

// Fold adds one block group to its county's running totals.
func (a *Aggregator) Fold(bg model.BlockGroup) {
	k := countyKey{state: bg.StateFIPS, county: bg.CountyFIPS}
	s, ok := a.sums[k]
	if !ok {
		s = &countySums{}
		a.sums[k] = s
	}
	s.score += bg.WalkabilityScore
	s.count++
	s.population += bg.Population
	s.housing += bg.HousingUnits
}

// Len returns the number of counties seen.
func (a *Aggregator) Len() int {
	return len(a.sums)
}

// Finalize returns one aggregate per county seen, ordered by state then
// county code, with names resolved from names.
func (a *Aggregator) Finalize(names reference.Names) []model.CountyAggregate {
	out := make([]model.CountyAggregate, 0, len(a.sums))
	for k, s := range a.sums {
		avg := 0.0
		if s.count > 0 {
			avg = s.score / float64(s.count)
		}
		out = append(out, model.CountyAggregate{
			StateFIPS:       k.state,
			CountyFIPS:      k.county,
			Name:            names.Name(k.state, k.county),
			AvgWalkability:  avg,
			BlockGroupCount: s.count,
			Population:      s.population,
			HousingUnits:    s.housing,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StateFIPS != out[j].StateFIPS {
			return out[i].StateFIPS < out[j].StateFIPS
		}
		return out[i].CountyFIPS < out[j].CountyFIPS
	})
	return out
}
