package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vaultd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
listen: ":9100"
workers: 8
root_dir: /var/lib/vaultd-test
logging:
  level: DEBUG
  format: json
  output: stdout
limits:
  max_sessions: 500
  handoff_capacity: 50
  idle_timeout: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9100", cfg.Listen)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, "/var/lib/vaultd-test", cfg.RootDir)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, 500, cfg.Limits.MaxSessions)
	require.Equal(t, 50, cfg.Limits.HandoffCapacity)
	require.Equal(t, 5*time.Minute, cfg.Limits.IdleTimeout)

	// Fields absent from the file keep their defaults.
	require.Equal(t, DefaultConfig().Metrics, cfg.Metrics)
	require.Equal(t, DefaultConfig().Admin, cfg.Admin)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfigFile(t, `
listen: ""
workers: 4
root_dir: /var/lib/vaultd
logging:
  level: INFO
  format: text
  output: stdout
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadValidatesWorkerCount(t *testing.T) {
	path := writeConfigFile(t, `
listen: ":9000"
workers: 0
root_dir: /var/lib/vaultd
logging:
  level: INFO
  format: text
  output: stdout
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadValidatesLoggingLevel(t *testing.T) {
	path := writeConfigFile(t, `
listen: ":9000"
workers: 4
root_dir: /var/lib/vaultd
logging:
  level: VERBOSE
  format: text
  output: stdout
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadValidatesLoggingFormat(t *testing.T) {
	path := writeConfigFile(t, `
listen: ":9000"
workers: 4
root_dir: /var/lib/vaultd
logging:
  level: INFO
  format: xml
  output: stdout
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
listen: ":9000"
workers: 4
root_dir: /var/lib/vaultd
logging:
  level: INFO
  format: text
  output: stdout
`)

	t.Setenv("VAULTD_WORKERS", "16")
	t.Setenv("VAULTD_LISTEN", ":9200")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.Workers)
	require.Equal(t, ":9200", cfg.Listen)
}

func TestDefaultConfigPassesValidation(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestGetDefaultConfigPathEndsInVaultdConfig(t *testing.T) {
	path := GetDefaultConfigPath()
	require.Equal(t, "config.yaml", filepath.Base(path))
	require.Equal(t, "vaultd", filepath.Base(filepath.Dir(path)))
}
