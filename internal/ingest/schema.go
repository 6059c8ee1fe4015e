// Package ingest turns walkability extracts into persisted block group rows
// and per-county aggregates.
package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Sentinel errors returned (wrapped) by the importer.
var (
	ErrMissingHeader  = eris.New("CSV has no header row")
	ErrMissingColumns = eris.New("CSV missing required columns")
)

// Column is a logical column of the walkability schema.
type Column int

const (
	Identifier Column = iota
	WalkabilityScore
	Population
	HousingUnits
)

var columnNames = map[Column]string{
	Identifier:       "identifier",
	WalkabilityScore: "walkability_score",
	Population:       "population",
	HousingUnits:     "housing_units",
}

func (c Column) String() string {
	if s, ok := columnNames[c]; ok {
		return s
	}
	return "unknown"
}

// ParseColumn maps a config key such as "walkability_score" to a Column.
func ParseColumn(s string) (Column, bool) {
	for c, name := range columnNames {
		if strings.EqualFold(name, s) {
			return c, true
		}
	}
	return 0, false
}

// AliasSet lists, per logical column, the header names that may carry it in
// priority order.
type AliasSet map[Column][]string

// DefaultAliases returns the header aliases seen across EPA Smart Location,
// National Walkability Index and Census extracts.
func DefaultAliases() AliasSet {
	return AliasSet{
		Identifier:       {"GEOID", "GEOID10", "GEOID20", "BlkGrpID", "FIPS"},
		WalkabilityScore: {"NatWalkInd", "WalkIndex", "NWI", "WALK_INDEX", "Walkability"},
		Population:       {"D1B", "Pop2010", "population", "POP", "TOTPOP", "P001001", "B01003_001E", "Total_Population", "TotalPopulation"},
		HousingUnits:     {"D1A", "HU2010", "housing_units", "HU"},
	}
}

// With returns a copy of a where extra aliases are tried before the existing
// ones of the same column.
func (a AliasSet) With(extra map[Column][]string) AliasSet {
	out := make(AliasSet, len(a))
	for c, list := range a {
		out[c] = append([]string(nil), list...)
	}
	for c, list := range extra {
		out[c] = append(append([]string(nil), list...), out[c]...)
	}
	return out
}

// ColumnMap holds the resolved position of each logical column; -1 means absent.
type ColumnMap struct {
	Identifier   int
	Score        int
	Population   int
	HousingUnits int
}

// headerCutset is stripped from both ends of header cells.
const headerCutset = "\" \t"

// Resolve locates the logical columns in a header row. For each column the
// aliases are tried in order and the first alias present anywhere in the header
// wins; when an alias occurs more than once the leftmost cell is used.
// Matching ignores case using Unicode case folding. A missing identifier or
// score column returns an error wrapping ErrMissingColumns that lists the
// headers that were seen.
func Resolve(header []string, aliases AliasSet) (ColumnMap, error) {
	folder := cases.Fold()
	fold := func(s string) string {
		return folder.String(norm.NFC.String(strings.Trim(s, headerCutset)))
	}

	seen := make([]string, len(header))
	positions := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		seen[i] = strings.Trim(h, headerCutset)
		key := fold(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	find := func(c Column) int {
		for _, alias := range aliases[c] {
			if idx, ok := positions[fold(alias)]; ok {
				return idx
			}
		}
		return -1
	}

	m := ColumnMap{
		Identifier:   find(Identifier),
		Score:        find(WalkabilityScore),
		Population:   find(Population),
		HousingUnits: find(HousingUnits),
	}

	var missing []string
	if m.Identifier < 0 {
		missing = append(missing, Identifier.String())
	}
	if m.Score < 0 {
		missing = append(missing, WalkabilityScore.String())
	}
	if len(missing) > 0 {
		return ColumnMap{}, eris.Wrapf(ErrMissingColumns,
			"ingest: need %s (aliases %s / %s); found: %s",
			strings.Join(missing, " and "),
			strings.Join(aliases[Identifier], ","),
			strings.Join(aliases[WalkabilityScore], ","),
			strings.Join(seen, ", "),
		)
	}
	return m, nil
}
