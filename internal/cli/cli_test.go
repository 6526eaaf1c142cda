package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseOnly builds a parser whose commands are parsed but never executed.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands) {
	t.Helper()
	parser, globals, cmds := buildParser("test")
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs(args)
	require.NoError(t, err)
	return globals, cmds
}

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() { err = RunWithArgs("1.2.3", []string{"--version"}) })
	assert.NoError(t, err)
	assert.Equal(t, "chargebook 1.2.3", strings.TrimSpace(output))
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs("test", []string{"--help"})
	assert.NoError(t, err)
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"add", "scan", "list", "show", "delete", "stats", "status", "publish", "purge"}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		assert.NotNil(t, parser.Find(name), "subcommand %q should exist", name)
	}
}

func TestUnknownSubcommandFails(t *testing.T) {
	parser, _, _ := buildParser("test")
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs([]string{"nonexistent"})
	require.Error(t, err)
}

func TestGlobalFlags(t *testing.T) {
	globals, _ := parseOnly(t, "--json", "--verbose", "--config", "/tmp/test.yaml", "status")
	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
}

func TestAddFlags(t *testing.T) {
	_, c := parseOnly(t, "add", "--energy", "21.5", "--duration", "45", "--cost", "0",
		"--balance", "87.1", "--date", "2025-06-01", "--location", "Mall P2", "--notes", "n", "--image", "r.jpg")
	assert.Equal(t, "21.5", c.Add.Energy)
	assert.Equal(t, "45", c.Add.Duration)
	assert.Equal(t, "0", c.Add.Cost)
	assert.Equal(t, "87.1", c.Add.Balance)
	assert.Equal(t, "2025-06-01", c.Add.Date)
	assert.Equal(t, "Mall P2", c.Add.Location)
	assert.Equal(t, "r.jpg", c.Add.Image)
}

func TestListFlagsDefaults(t *testing.T) {
	_, c := parseOnly(t, "list")
	assert.Equal(t, 20, c.List.Limit)
	assert.Empty(t, c.List.Since)

	_, c = parseOnly(t, "list", "--since", "30d", "--limit", "5")
	assert.Equal(t, "30d", c.List.Since)
	assert.Equal(t, 5, c.List.Limit)
}

func TestStatsFlags(t *testing.T) {
	_, c := parseOnly(t, "stats", "--months", "12", "--ref", "2025-04")
	assert.Equal(t, 12, c.Stats.Months)
	assert.Equal(t, "2025-04", c.Stats.Ref)
}

func TestPurgeForceFlag(t *testing.T) {
	_, c := parseOnly(t, "purge", "--all", "--force")
	assert.True(t, c.Purge.All)
	assert.True(t, c.Purge.Force)
}

func TestCommandsShareGlobals(t *testing.T) {
	globals, c := parseOnly(t, "--json", "show", "--id", "abc")
	assert.Same(t, globals, c.Show.globals)
	assert.Equal(t, "abc", c.Show.ID)
	assert.Equal(t, "test", c.Show.version)
}

func writeTestConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := `storage:
  backend: ` + backend + `
  path: ` + filepath.Join(dir, "data") + `
  sqlite_journal_mode: delete
display:
  locale: en
  currency: USD
  timezone: UTC
extraction:
  enabled: false
logging:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func TestEndToEnd_AddThenList(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfgPath := writeTestConfig(t, backend)

			var err error
			output := captureOutput(t, func() {
				err = RunWithArgs("test", []string{"--config", cfgPath, "add",
					"--energy", "21.5", "--duration", "45", "--cost", "12.9", "--date", "2025-03-03 18:30"})
			})
			require.NoError(t, err)
			assert.Contains(t, output, "Added session")

			output = captureOutput(t, func() {
				err = RunWithArgs("test", []string{"--config", cfgPath, "--json", "list"})
			})
			require.NoError(t, err)

			var out jsonListOutput
			require.NoError(t, json.Unmarshal([]byte(output), &out), "output should be valid JSON: %s", output)
			require.Equal(t, 1, out.Count)
			assert.Equal(t, 21.5, out.Results[0].EnergyKWh)
			assert.Equal(t, 45, out.Results[0].DurationMinutes)
			assert.Equal(t, "2025-03-03T18:30:00Z", out.Results[0].Date.Format("2006-01-02T15:04:05Z07:00"))
		})
	}
}

func TestEndToEnd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: postgres\n"), 0o644))

	err := RunWithArgs("test", []string{"--config", path, "status"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
