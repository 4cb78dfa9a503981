package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Paths contains the resolved on-disk locations used by both binaries
type Paths struct {
	DataDir      string
	DatabasePath string
	FlagsPath    string
	LogPath      string
}

// dataFile resolves name under $XDG_DATA_HOME/licensebridge, creating the directory
func dataFile(name string) (string, error) {
	return xdg.DataFile(filepath.Join(AppName, name))
}

// resolvePaths fills empty storage and log paths with XDG defaults
func (c *Config) resolvePaths() error {
	var err error
	if c.Storage.DatabasePath == "" {
		if c.Storage.DatabasePath, err = dataFile(DatabaseFileName); err != nil {
			return fmt.Errorf("database path: %w", err)
		}
	}
	if c.Storage.FlagsPath == "" {
		if c.Storage.FlagsPath, err = dataFile(FlagsFileName); err != nil {
			return fmt.Errorf("flags path: %w", err)
		}
	}
	if c.Logging.FilePath == "" && c.Logging.Output != "console" {
		if c.Logging.FilePath, err = dataFile(filepath.Join("logs", LogFileName)); err != nil {
			return fmt.Errorf("log path: %w", err)
		}
	}
	return nil
}

// GetPaths returns the resolved paths for this configuration
func (c *Config) GetPaths() Paths {
	return Paths{
		DataDir:      filepath.Dir(c.Storage.DatabasePath),
		DatabasePath: c.Storage.DatabasePath,
		FlagsPath:    c.Storage.FlagsPath,
		LogPath:      c.Logging.FilePath,
	}
}

// EnsureDirectories creates the parent directories of every configured file
func (p Paths) EnsureDirectories() error {
	for _, file := range []string{p.DatabasePath, p.FlagsPath, p.LogPath} {
		if file == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", file, err)
		}
	}
	return nil
}

// LogPathResolution logs the resolved paths for debugging
func (p Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Resolved application paths",
		slog.String("data_dir", p.DataDir),
		slog.String("database_path", p.DatabasePath),
		slog.String("flags_path", p.FlagsPath),
		slog.String("log_path", p.LogPath),
	)
}
