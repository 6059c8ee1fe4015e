package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/reference"
)

func TestAggregator_SingleCounty(t *testing.T) {
	a := NewAggregator()
	a.Fold(model.NewBlockGroup("010010201001", 4, 100, 10))
	a.Fold(model.NewBlockGroup("010010201002", 8, 200, 20))
	a.Fold(model.NewBlockGroup("010010202001", 12, 300, 30))

	out := a.Finalize(reference.MustDefaultNames())
	require.Len(t, out, 1)
	assert.Equal(t, model.CountyAggregate{
		StateFIPS:       "01",
		CountyFIPS:      "001",
		Name:            "Autauga",
		AvgWalkability:  8.0,
		BlockGroupCount: 3,
		Population:      600,
		HousingUnits:    60,
	}, out[0])
}

func TestAggregator_OrderAndFallbackName(t *testing.T) {
	a := NewAggregator()
	a.Fold(model.NewBlockGroup("481130001001", 10, 0, 0))
	a.Fold(model.NewBlockGroup("010030101001", 6, 0, 0))
	a.Fold(model.NewBlockGroup("010010201001", 2, 0, 0))
	assert.Equal(t, 3, a.Len())

	out := a.Finalize(reference.MustDefaultNames())
	require.Len(t, out, 3)
	assert.Equal(t, "01001", out[0].FIPS())
	assert.Equal(t, "01003", out[1].FIPS())
	assert.Equal(t, "Baldwin", out[1].Name)
	assert.Equal(t, "48113", out[2].FIPS())
	assert.Equal(t, "County 48113", out[2].Name)
}

func TestAggregator_Empty(t *testing.T) {
	out := NewAggregator().Finalize(reference.Names{})
	assert.Empty(t, out)
}
