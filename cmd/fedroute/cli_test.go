package fedroute

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "federation.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	assert.NoError(t, runCLI(t, "version"))
}

func TestClassifyCommand(t *testing.T) {
	path := testConfig(t)
	assert.NoError(t, runCLI(t, "--config", path, "classify", "implement a quicksort function"))
}

func TestProvidersCommand(t *testing.T) {
	path := testConfig(t)
	assert.NoError(t, runCLI(t, "--config", path, "providers"))
}

func TestRouteCommand(t *testing.T) {
	path := testConfig(t)
	assert.NoError(t, runCLI(t, "--config", path, "route", "--json", "write code to parse a log file"))
}

func TestCostsCommand(t *testing.T) {
	path := testConfig(t)
	assert.NoError(t, runCLI(t, "--config", path, "costs", "--input-tokens", "2000"))
}
