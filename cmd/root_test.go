package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// runCLI executes a fresh root command against a SQLite database in a temp
// directory and returns everything written to stdout and stderr.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// cliEnv points the configuration at a fresh workspace and returns its path.
func cliEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(origDir) //nolint:errcheck
		zap.ReplaceGlobals(zap.NewNop())
	})

	t.Setenv("WALK_STORE_DRIVER", "sqlite")
	t.Setenv("WALK_STORE_DATABASE_URL", filepath.Join(dir, "walk.db"))
	t.Setenv("WALK_LOG_LEVEL", "error")
	t.Setenv("WALK_IMPORT_MAX_ATTEMPTS", "1")
	return dir
}

func subcommandNames(cmd *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	return names
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(newRootCmd())

	expected := []string{"migrate", "import", "seed", "headers", "counties", "stats", "export", "search", "runs", "config"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "walkability", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotEmpty(t, root.Long)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestImportCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(newImportCmd(&app{}))
	for _, name := range []string{"file", "url", "text"} {
		assert.True(t, names[name], "expected import subcommand %q", name)
	}
}

func TestCommandFlagDefaults(t *testing.T) {
	a := &app{}
	tests := []struct {
		cmd  *cobra.Command
		flag string
		def  string
	}{
		{newImportURLCmd(a), "concurrency", "1"},
		{newCountiesCmd(a), "sort", "name"},
		{newCountiesCmd(a), "limit", "0"},
		{newCountiesCmd(a), "with-data", "false"},
		{newStatsCmd(a), "forecast-years", "0"},
		{newRunsCmd(a), "limit", "20"},
		{newSearchCmd(a), "rows", "10"},
		{newSeedCmd(a), "tiger", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name()+"/"+tt.flag, func(t *testing.T) {
			f := tt.cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestCommandFlags_FreshState(t *testing.T) {
	first := newImportURLCmd(&app{})
	require.NoError(t, first.Flags().Set("concurrency", "8"))

	second := newImportURLCmd(&app{})
	assert.Equal(t, "1", second.Flags().Lookup("concurrency").Value.String())
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	cliEnv(t)
	t.Setenv("WALK_STORE_DRIVER", "oracle")

	_, err := runCLI(t, "", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestRoot_MissingConfigFile(t *testing.T) {
	dir := cliEnv(t)
	_, err := runCLI(t, "", "--config", filepath.Join(dir, "missing.yaml"), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestMigrate(t *testing.T) {
	dir := cliEnv(t)

	out, err := runCLI(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite)")
	assert.FileExists(t, filepath.Join(dir, "walk.db"))
}

func TestConfigShow_Redacts(t *testing.T) {
	cliEnv(t)
	t.Setenv("WALK_DATAGOV_API_KEY", "super-secret")

	out, err := runCLI(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: sqlite")
	assert.Contains(t, out, "api_key: xxxxx")
	assert.NotContains(t, out, "super-secret")
}
