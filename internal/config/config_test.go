package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points XDG and the config lookup at a temp dir so Load never touches the real home
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv(ConfigFileEnv, "")
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config, string)
	}{
		{
			name: "defaults with no env vars",
			validateCfg: func(t *testing.T, cfg *Config, dir string) {
				assert.Equal(t, DefaultPort, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "ws://127.0.0.1:7421/bridge", cfg.Bridge.URL)
				assert.Equal(t, DefaultTrialDays, cfg.App.TrialDays)
				assert.Equal(t, filepath.Join(dir, AppName, DatabaseFileName), cfg.Storage.DatabasePath)
				assert.Equal(t, filepath.Join(dir, AppName, FlagsFileName), cfg.Storage.FlagsPath)
				assert.Empty(t, cfg.Logging.FilePath)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"LICENSEBRIDGE_SERVER_PORT":            "9000",
				"LICENSEBRIDGE_BRIDGE_URL":             "wss://license.local/bridge",
				"LICENSEBRIDGE_BRIDGE_RATE_LIMIT_RPS":  "5",
				"LICENSEBRIDGE_LOGGING_LEVEL":          "warning",
				"LICENSEBRIDGE_APP_VERSION":            "4.1.0",
				"LICENSEBRIDGE_STORAGE_DATABASE_PATH":  "/tmp/custom.db",
				"LICENSEBRIDGE_BRIDGE_REQUEST_TIMEOUT": "3s",
			},
			validateCfg: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, "wss://license.local/bridge", cfg.Bridge.URL)
				assert.Equal(t, float64(5), cfg.Bridge.RateLimit.RPS)
				assert.Equal(t, "warn", cfg.Logging.Level)
				assert.Equal(t, "4.1.0", cfg.App.Version)
				assert.Equal(t, "/tmp/custom.db", cfg.Storage.DatabasePath)
				assert.Equal(t, 3*time.Second, cfg.Bridge.RequestTimeout)
			},
		},
		{
			name: "file values with env precedence",
			file: "server:\n  port: 8111\napp:\n  trial_days: 30\n",
			env:  map[string]string{"LICENSEBRIDGE_APP_TRIAL_DAYS": "7"},
			validateCfg: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, 8111, cfg.Server.Port)
				assert.Equal(t, 7, cfg.App.TrialDays)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "keys absent from the file keep defaults")
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"LICENSEBRIDGE_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "non websocket bridge url",
			env:     map[string]string{"LICENSEBRIDGE_BRIDGE_URL": "http://127.0.0.1/bridge"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [",
			wantErr: true,
		},
		{
			name:    "pong wait shorter than ping period",
			env:     map[string]string{"LICENSEBRIDGE_BRIDGE_PONG_WAIT": "1s"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.file != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(tt.file), 0o600))
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg, dir)
		})
	}
}

func TestLoadExplicitConfigFile(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "elsewhere.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telemetry:\n  trace_exporter: stdout\n"), 0o600))
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1:7421", cfg.Server.Address())
}

func TestValidateRejectsBadTelemetry(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.SampleRatio = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Telemetry.TraceExporter = "otlp"
	assert.Error(t, cfg.Validate())
}
