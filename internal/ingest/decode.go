package ingest

import (
	"strconv"
	"strings"

	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/transform"
)

// cellCutset is stripped from both ends of data cells.
const cellCutset = "\" "

// SplitLine splits one CSV line on commas. A double quote toggles the quoted
// state and is dropped; commas inside quotes are kept as content. Doubled
// quotes therefore vanish rather than producing a literal quote, which is
// harmless for the numeric and code columns read here.
func SplitLine(line string) []string {
	fields := make([]string, 0, 16)
	var sb strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, sb.String())
			sb.Reset()
		default:
			sb.WriteRune(r)
		}
	}
	return append(fields, sb.String())
}

// Decode converts the fields of one data row into a BlockGroup. It reports
// false, and the row is skipped, when the row is too short to hold the
// identifier and score, the identifier is blank, or the score is not a finite
// decimal number. Population and housing fall back to 0 when absent or unparsable.
func (m ColumnMap) Decode(fields []string) (model.BlockGroup, bool) {
	if len(fields) <= max(m.Identifier, m.Score) {
		return model.BlockGroup{}, false
	}

	raw := strings.Trim(fields[m.Identifier], cellCutset)
	if raw == "" {
		return model.BlockGroup{}, false
	}

	score, ok := transform.ParseDecimal(strings.Trim(fields[m.Score], cellCutset))
	if !ok {
		return model.BlockGroup{}, false
	}

	fips := transform.NormalizeBlockGroupFIPS(raw)
	return model.NewBlockGroup(fips, score, parseCount(fields, m.Population), parseCount(fields, m.HousingUnits)), true
}

// parseCount reads an optional integer cell; anything unusable is 0.
func parseCount(fields []string, idx int) int64 {
	if idx < 0 || idx >= len(fields) {
		return 0
	}
	n, err := strconv.ParseInt(strings.Trim(fields[idx], cellCutset), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
