package tiger

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/walkability/internal/fetcher"
	"github.com/sells-group/walkability/internal/reference"
)

// writeCountyShapefile writes a point shapefile with the county attribute
// columns and returns the .shp path.
func writeCountyShapefile(t *testing.T, dir string, rows [][3]string) string {
	t.Helper()
	path := filepath.Join(dir, "tl_2024_us_county.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("STATEFP", 2),
		shp.StringField("COUNTYFP", 3),
		shp.StringField("NAME", 100),
	}))
	for i, r := range rows {
		w.Write(&shp.Point{X: -86.6, Y: 32.5})
		for j, v := range r {
			require.NoError(t, w.WriteAttribute(i, j, v))
		}
	}
	w.Close()
	return path
}

func zipDir(t *testing.T, dir, zipPath string) {
	t.Helper()
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		w, err := zw.Create(e.Name())
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

var sampleCounties = [][3]string{
	{"48", "113", "Dallas"},
	{"06", "037", "Los Angeles"},
	{"01", "", "Broken"},
}

func TestReadCountyNames(t *testing.T) {
	path := writeCountyShapefile(t, t.TempDir(), sampleCounties)

	entries, err := ReadCountyNames(path)
	require.NoError(t, err)
	assert.Equal(t, []reference.Entry{
		{StateFIPS: "48", CountyFIPS: "113", Name: "Dallas"},
		{StateFIPS: "06", CountyFIPS: "037", Name: "Los Angeles"},
	}, entries)
}

func TestReadCountyNames_NumericCodesPadded(t *testing.T) {
	path := writeCountyShapefile(t, t.TempDir(), [][3]string{
		{"1", "1", "Autauga"},
		{"6", "37", "Los Angeles"},
	})

	entries, err := ReadCountyNames(path)
	require.NoError(t, err)
	assert.Equal(t, []reference.Entry{
		{StateFIPS: "01", CountyFIPS: "001", Name: "Autauga"},
		{StateFIPS: "06", CountyFIPS: "037", Name: "Los Angeles"},
	}, entries)
}

func TestReadCountyNames_MissingFile(t *testing.T) {
	_, err := ReadCountyNames(filepath.Join(t.TempDir(), "missing.shp"))
	require.Error(t, err)
}

func TestLoadCountyNames_LocalZip(t *testing.T) {
	shpDir := t.TempDir()
	writeCountyShapefile(t, shpDir, sampleCounties)
	zipPath := filepath.Join(t.TempDir(), "tl_2024_us_county.zip")
	zipDir(t, shpDir, zipPath)

	entries, err := LoadCountyNames(context.Background(), nil, zipPath, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLoadCountyNames_RemoteZip(t *testing.T) {
	shpDir := t.TempDir()
	writeCountyShapefile(t, shpDir, sampleCounties)
	zipPath := filepath.Join(t.TempDir(), "tl_2024_us_county.zip")
	zipDir(t, shpDir, zipPath)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		f, err := os.Open(zipPath)
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close() //nolint:errcheck
		_, _ = io.Copy(w, f)
	}))
	defer srv.Close()

	tempDir := t.TempDir()
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	entries, err := LoadCountyNames(context.Background(), f, srv.URL+"/geo/tl_2024_us_county.zip", tempDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = LoadCountyNames(context.Background(), f, srv.URL+"/geo/tl_2024_us_county.zip", tempDir)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load(), "cached archive is reused")
}

func TestLoadCountyNames_UnsupportedSource(t *testing.T) {
	_, err := LoadCountyNames(context.Background(), nil, "counties.gpkg", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported county shapefile source")
}

func TestFindFileByExt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "a.SHP"), []byte("x"), 0o644))

	path, err := findFileByExt(dir, ".shp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "a.SHP"), path)

	_, err = findFileByExt(dir, ".dbf")
	require.Error(t, err)
}

func TestCountyURL(t *testing.T) {
	assert.Equal(t, "https://www2.census.gov/geo/tiger/TIGER2024/COUNTY/tl_2024_us_county.zip", CountyURL(2024))
}
