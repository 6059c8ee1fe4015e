// Package model defines the records that flow from a walkability extract into
// the store and back out through the read side.
package model

import "github.com/sells-group/walkability/internal/transform"

// BlockGroup is one census block group row. StateFIPS, CountyFIPS and
// TractFIPS are always prefixes of FIPS.
type BlockGroup struct {
	FIPS             string  `json:"fips" csv:"fips"`
	StateFIPS        string  `json:"state_fips" csv:"state_fips"`
	CountyFIPS       string  `json:"county_fips" csv:"county_fips"`
	TractFIPS        string  `json:"tract_fips" csv:"tract_fips"`
	WalkabilityScore float64 `json:"walkability_score" csv:"walkability_score"`
	Population       int64   `json:"population" csv:"population"`
	HousingUnits     int64   `json:"housing_units" csv:"housing_units"`
}

// NewBlockGroup builds a BlockGroup from a 12-character code, slicing the
// state, county and tract prefixes from it. Codes of any other length are
// normalized first. Negative counts are stored as zero.
func NewBlockGroup(fips string, score float64, population, housing int64) BlockGroup {
	if !transform.IsCanonicalBlockGroupFIPS(fips) {
		fips = transform.NormalizeBlockGroupFIPS(fips)
	}
	state, county, tract := transform.SplitBlockGroupFIPS(fips)
	return BlockGroup{
		FIPS:             fips,
		StateFIPS:        state,
		CountyFIPS:       county,
		TractFIPS:        tract,
		WalkabilityScore: score,
		Population:       max(population, 0),
		HousingUnits:     max(housing, 0),
	}
}
