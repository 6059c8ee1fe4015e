package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestXLSX(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "walk.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeTestXLSX(t, "Sheet1", [][]string{
		{"GEOID", "NatWalkInd", "TotPop"},
		{"010010201001", "6.5", "700"},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"GEOID", "NatWalkInd", "TotPop"}, rows[0])
	assert.Equal(t, []string{"010010201001", "6.5", "700"}, rows[1])
}

func TestReadXLSX_SheetByName(t *testing.T) {
	path := writeTestXLSX(t, "BlockGroups", [][]string{{"GEOID"}})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "BlockGroups"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := writeTestXLSX(t, "Sheet1", [][]string{{"GEOID"}})
	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, isBlank([]string{"", ""}))
	assert.True(t, isBlank(nil))
	assert.False(t, isBlank([]string{"", "x"}))
}
