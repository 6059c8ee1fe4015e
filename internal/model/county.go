package model

import "time"

// CountyAggregate is the rolled-up statistics of one county produced by a
// single ingestion pass.
type CountyAggregate struct {
	StateFIPS       string  `json:"state_fips" csv:"state_fips"`
	CountyFIPS      string  `json:"county_fips" csv:"county_fips"`
	Name            string  `json:"name" csv:"name"`
	AvgWalkability  float64 `json:"avg_walkability" csv:"avg_walkability"`
	BlockGroupCount int     `json:"block_group_count" csv:"block_group_count"`
	Population      int64   `json:"population" csv:"population"`
	HousingUnits    int64   `json:"housing_units" csv:"housing_units"`
}

// County is a persisted county row as read back from the store.
type County struct {
	CountyAggregate
	UpdatedAt time.Time `json:"updated_at" csv:"updated_at"`
}

// FIPS returns the 5-digit state+county code.
func (c CountyAggregate) FIPS() string {
	return c.StateFIPS + c.CountyFIPS
}
