package tiger

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability/internal/reference"
	"github.com/sells-group/walkability/internal/transform"
)

// fipsAttr zero-pads codes that older vintages store as numeric fields.
func fipsAttr(v string, digits int) string {
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return transform.FormatFIPS(n, digits)
	}
	return v
}

// ReadCountyNames reads STATEFP, COUNTYFP and NAME from every record of a
// county shapefile's attribute table. Records missing any of them are skipped.
func ReadCountyNames(shpPath string) ([]reference.Entry, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	for _, col := range []string{fieldStateFP, fieldCountyFP, fieldName} {
		if _, ok := fieldIdx[col]; !ok {
			return nil, eris.Errorf("tiger: shapefile %s has no %s attribute", shpPath, strings.ToUpper(col))
		}
	}

	attr := func(col string) string {
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(fieldIdx[col]), "\x00"))
	}

	var entries []reference.Entry
	skipped := 0
	for reader.Next() {
		e := reference.Entry{
			StateFIPS:  fipsAttr(attr(fieldStateFP), 2),
			CountyFIPS: fipsAttr(attr(fieldCountyFP), 3),
			Name:       attr(fieldName),
		}
		if e.StateFIPS == "" || e.CountyFIPS == "" || e.Name == "" {
			skipped++
			continue
		}
		entries = append(entries, e)
	}

	if skipped > 0 {
		zap.L().Debug("tiger: skipped county records", zap.String("path", shpPath), zap.Int("skipped", skipped))
	}
	return entries, nil
}
