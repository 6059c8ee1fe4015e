// Package tiger reads county names from Census TIGER/Line county shapefiles
// so aggregates outside the built-in table get real names.
package tiger

import "fmt"

// Attribute columns of the national county file.
const (
	fieldStateFP  = "statefp"
	fieldCountyFP = "countyfp"
	fieldName     = "name"
)

// CountyURL builds the Census Bureau download URL of the national county
// shapefile for a TIGER/Line vintage.
func CountyURL(year int) string {
	return fmt.Sprintf("https://www2.census.gov/geo/tiger/TIGER%d/COUNTY/tl_%d_us_county.zip", year, year)
}
