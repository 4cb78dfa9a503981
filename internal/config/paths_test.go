package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsLogFile(t *testing.T) {
	dir := isolateEnv(t)

	cfg := Default()
	cfg.Logging.Output = "both"
	require.NoError(t, cfg.resolvePaths())

	assert.Equal(t, filepath.Join(dir, AppName, "logs", LogFileName), cfg.Logging.FilePath)
}

func TestResolvePathsKeepsExplicitValues(t *testing.T) {
	isolateEnv(t)

	cfg := Default()
	cfg.Storage.DatabasePath = "/opt/db.sqlite"
	cfg.Storage.FlagsPath = "/opt/flags.json"
	require.NoError(t, cfg.resolvePaths())

	paths := cfg.GetPaths()
	assert.Equal(t, "/opt", paths.DataDir)
	assert.Equal(t, "/opt/db.sqlite", paths.DatabasePath)
	assert.Equal(t, "/opt/flags.json", paths.FlagsPath)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		DatabasePath: filepath.Join(dir, "a", "app.db"),
		FlagsPath:    filepath.Join(dir, "b", "flags.json"),
	}

	require.NoError(t, paths.EnsureDirectories())

	for _, sub := range []string{"a", "b"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.NoFileExists(t, paths.DatabasePath)
}
