package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/store"
	"github.com/sells-group/walkability/pkg/datagov"
)

func TestFormatRunsList(t *testing.T) {
	start := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	done := start.Add(2 * time.Minute)
	runs := []model.ImportRun{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			Source:      "https://edg.epa.gov/EPADataCommons/public/OA/WalkabilityIndex.zip",
			Status:      model.ImportStatusComplete,
			StartedAt:   start,
			CompletedAt: &done,
			BlockGroups: 220000,
			Counties:    3100,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Source:    "text",
			Status:    model.ImportStatusFailed,
			StartedAt: start.Add(-time.Hour),
			Error:     "ingest: missing header",
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "220000")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "ingest: missing header")
	assert.Contains(t, output, "...")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "abc", truncateID("abc"))
}

func TestWriteCountiesCSV(t *testing.T) {
	updated := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	counties := []model.County{{
		CountyAggregate: model.CountyAggregate{
			StateFIPS: "01", CountyFIPS: "001", Name: "Autauga",
			AvgWalkability: 10, BlockGroupCount: 2, Population: 1000, HousingUnits: 450,
		},
		UpdatedAt: updated,
	}}

	var buf bytes.Buffer
	require.NoError(t, writeCountiesCSV(&buf, counties))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "state_fips,county_fips,name,avg_walkability,block_group_count,population,housing_units,updated_at", lines[0])
	assert.Equal(t, "01,001,Autauga,10,2,1000,450,2025-01-02T03:04:05Z", lines[1])
}

func TestWriteCountiesCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCountiesCSV(&buf, nil))
	assert.True(t, strings.HasPrefix(buf.String(), "state_fips,county_fips,name"))
}

func TestExportCounties_File(t *testing.T) {
	dir := cliEnv(t)
	_, err := runCLI(t, autaugaCSV, "import", "text")
	require.NoError(t, err)

	path := filepath.Join(dir, "counties.csv")
	_, err = runCLI(t, "", "export", "counties", "--with-data", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "01,001,Autauga,10,2,1000,450,")
}

func TestCountyFlags_Filter(t *testing.T) {
	f := countyFlags{state: "al", sort: "walkability", limit: 5, withData: true}
	filter, err := f.filter()
	require.NoError(t, err)
	assert.Equal(t, store.CountyFilter{StateFIPS: "01", Sort: store.SortByWalkability, Limit: 5, WithDataOnly: true}, filter)

	_, err = (&countyFlags{sort: "population"}).filter()
	assert.Error(t, err)
	_, err = (&countyFlags{sort: "name", state: "ZZ"}).filter()
	assert.Error(t, err)
	_, err = (&countyFlags{sort: "name", limit: -1}).filter()
	assert.Error(t, err)
}

func TestResolveState(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"", "", false},
		{"AL", "01", false},
		{"dc", "11", false},
		{"06", "06", false},
		{"72", "", true},
		{"XX", "", true},
	}
	for _, tt := range tests {
		got, err := resolveState(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestStats_CountyNeedsState(t *testing.T) {
	cliEnv(t)
	_, err := runCLI(t, "", "stats", "--county", "001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--county requires --state")
}

func TestStats_Forecast(t *testing.T) {
	cliEnv(t)
	_, err := runCLI(t, autaugaCSV, "import", "text")
	require.NoError(t, err)

	out, err := runCLI(t, "", "stats", "--forecast-years", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "PROJECTED")
	assert.Contains(t, out, "WY")
}

func TestSearch(t *testing.T) {
	cliEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/3/action/package_search", r.URL.Path)
		assert.Equal(t, "walkability index", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"result":{"count":1,"results":[{
			"name":"walkability-index","title":"National Walkability Index",
			"organization":{"title":"EPA"},
			"resources":[
				{"format":"ZIP","url":"https://edg.epa.gov/WalkabilityIndex.zip"},
				{"format":"HTML","url":"https://www.epa.gov/smartgrowth"}
			]}]}}`))
	}))
	defer srv.Close()
	t.Setenv("WALK_DATAGOV_BASE_URL", srv.URL)

	out, err := runCLI(t, "", "search", "walkability", "index")
	require.NoError(t, err)
	assert.Contains(t, out, "1 matching packages")
	assert.Contains(t, out, "National Walkability Index (walkability-index)")
	assert.Contains(t, out, "publisher: EPA")
	assert.Contains(t, out, "[ZIP] https://edg.epa.gov/WalkabilityIndex.zip")
	assert.NotContains(t, out, "smartgrowth")
}

func TestFormatSearch_NoResources(t *testing.T) {
	var buf bytes.Buffer
	formatSearch(&buf, &datagov.SearchResult{Count: 1, Packages: []datagov.Package{{Name: "x", Title: "X"}}})
	assert.Contains(t, buf.String(), "no importable resources")
}
