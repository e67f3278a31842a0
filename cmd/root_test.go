package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{
		"discover", "collect", "shortlist", "weekly", "add-place",
		"set-status", "candidates", "stats", "runs", "migrate",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "review-scout", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestShortlistCommand_Flags(t *testing.T) {
	flag := shortlistCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag, "shortlist command should have --dry-run flag")
	assert.Equal(t, "false", flag.DefValue)

	require.NotNil(t, shortlistCmd.Flags().Lookup("screenshot-dir"))
}

func TestListCommands_LimitFlags(t *testing.T) {
	for cmd, def := range map[string]string{"candidates": "50", "stats": "20", "runs": "20"} {
		c, _, err := rootCmd.Find([]string{cmd})
		require.NoError(t, err)
		flag := c.Flags().Lookup("limit")
		require.NotNil(t, flag, "%s should have --limit flag", cmd)
		assert.Equal(t, def, flag.DefValue)
	}
}

func TestArgsValidation(t *testing.T) {
	assert.Error(t, addPlaceCmd.Args(addPlaceCmd, nil))
	assert.NoError(t, addPlaceCmd.Args(addPlaceCmd, []string{"ChIJ1"}))
	assert.Error(t, setStatusCmd.Args(setStatusCmd, []string{"r1"}))
	assert.NoError(t, setStatusCmd.Args(setStatusCmd, []string{"r1", "used"}))
}

// execute runs the root command in a scratch directory with a local
// SQLite store.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func scratchDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	t.Setenv("SCOUT_LOG_LEVEL", "error")
	t.Setenv("SCOUT_APP_DATA_DIR", dir+"/data")
	t.Setenv("SCOUT_APP_OUTPUT_DIR", dir+"/out")
	return dir
}

func TestExecute_AddPlaceThenRuns(t *testing.T) {
	dir := scratchDir(t)

	out, err := execute(t, "add-place", "ChIJ-bar-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Added place ChIJ-bar-1.")
	assert.FileExists(t, dir+"/data/reviews.db")

	out, err = execute(t, "runs", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "add-place")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "places=1")

	out, err = execute(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "No ingest stats recorded.")
}

func TestExecute_EmptyStore(t *testing.T) {
	scratchDir(t)

	out, err := execute(t, "candidates")
	require.NoError(t, err)
	assert.Contains(t, out, "No candidates.")

	out, err = execute(t, "shortlist", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "No reviews selected")
}

func TestExecute_SetStatusRejectsUnknownStatus(t *testing.T) {
	scratchDir(t)

	_, err := execute(t, "set-status", "r1", "archived")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid review status")
}

func TestExecute_DiscoverNeedsCredentials(t *testing.T) {
	scratchDir(t)
	t.Setenv("SCOUT_SERPAPI_KEY", "")

	_, err := execute(t, "discover")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serpapi.key is required")
}
