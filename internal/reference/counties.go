// Package reference holds the static jurisdiction tables: state codes and the
// county name lookup used when county aggregates are finalized.
package reference

import (
	_ "embed"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability/internal/transform"
)

//go:embed alabama_counties.csv
var alabamaCountiesCSV []byte

// Entry is one row of a county name table.
type Entry struct {
	StateFIPS  string `csv:"state_fips"`
	CountyFIPS string `csv:"county_fips"`
	Name       string `csv:"name"`
}

// Names is an immutable county name lookup keyed by the 5-digit state+county
// code. The zero value is empty and usable.
type Names struct {
	byKey map[string]string
}

// NewNames builds a lookup from entries. Codes are zero-padded; entries with
// an empty name are ignored and later entries win.
func NewNames(entries []Entry) Names {
	return Names{}.Merge(entries)
}

// DefaultNames decodes the embedded Alabama county table.
func DefaultNames() (Names, error) {
	var entries []Entry
	if err := csvutil.Unmarshal(alabamaCountiesCSV, &entries); err != nil {
		return Names{}, eris.Wrap(err, "reference: decode embedded county table")
	}
	return NewNames(entries), nil
}

// MustDefaultNames is DefaultNames for package-level initialization.
func MustDefaultNames() Names {
	n, err := DefaultNames()
	if err != nil {
		panic(err)
	}
	return n
}

// Merge returns a new lookup with entries layered over n. n is not modified.
func (n Names) Merge(entries []Entry) Names {
	out := make(map[string]string, len(n.byKey)+len(entries))
	for k, v := range n.byKey {
		out[k] = v
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		key := transform.CombineFIPS(e.StateFIPS, e.CountyFIPS)
		if name == "" || key == "" {
			continue
		}
		out[key] = name
	}
	return Names{byKey: out}
}

// Lookup returns the known name of a county.
func (n Names) Lookup(stateFIPS, countyFIPS string) (string, bool) {
	name, ok := n.byKey[stateFIPS+countyFIPS]
	return name, ok
}

// Name returns the known name of a county, or the placeholder
// "County <state><county>" when the county is not in the table.
func (n Names) Name(stateFIPS, countyFIPS string) string {
	if name, ok := n.Lookup(stateFIPS, countyFIPS); ok {
		return name
	}
	return PlaceholderName(stateFIPS, countyFIPS)
}

// PlaceholderName is the name given to counties missing from the table.
func PlaceholderName(stateFIPS, countyFIPS string) string {
	return "County " + stateFIPS + countyFIPS
}

// Len returns the number of known counties.
func (n Names) Len() int {
	return len(n.byKey)
}

// Entries returns every known county ordered by state then county code.
func (n Names) Entries() []Entry {
	keys := make([]string, 0, len(n.byKey))
	for k := range n.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{StateFIPS: k[:2], CountyFIPS: k[2:], Name: n.byKey[k]}
	}
	return out
}
