// Package config loads vaultd's configuration from a YAML file, environment
// variables, and defaults, following the teacher's pkg/config precedence
// (CLI flag > env var > file > default) sized to this system's actual knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/chuxmalux/vaultd/internal/bytesize"
)

// Config is vaultd's complete runtime configuration.
//
// Configuration sources, highest precedence first:
//  1. CLI flags, applied by the caller after Load returns
//  2. Environment variables (VAULTD_*)
//  3. Configuration file (YAML)
//  4. Default values
type Config struct {
	// Listen is the address the acceptor binds, e.g. ":9000".
	Listen string `mapstructure:"listen" validate:"required" yaml:"listen"`

	// Workers is the dispatch worker count (C6/C8).
	Workers int `mapstructure:"workers" validate:"required,gt=0" yaml:"workers"`

	// RootDir is the base directory auth/storage state is rooted under.
	RootDir string `mapstructure:"root_dir" validate:"required" yaml:"root_dir"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Limits controls session/auth capacity.
	Limits LimitsConfig `mapstructure:"limits" yaml:"limits"`

	// Metrics configures the Prometheus exposition endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Admin configures the admin/introspection HTTP server.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// Buffers sizes the shared buffer pool's tiers.
	Buffers BufferConfig `mapstructure:"buffers" yaml:"buffers"`

	// Storage selects the C5 storage table backend.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls continuous Pyroscope profiling, independent of
// tracing (a deployment can enable one without the other).
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// LimitsConfig holds session/handoff limits whose defaults mirror
// MAX_SESSIONS and MAX_QUEUE_NODES. These values are loaded and validated
// but not applied: the server sizes the session registry and handoff queue
// from session.MaxSessions and queue.MaxNodes, and no idle reaper runs on
// IdleTimeout.
type LimitsConfig struct {
	MaxSessions     int           `mapstructure:"max_sessions" validate:"omitempty,gt=0" yaml:"max_sessions"`
	HandoffCapacity int           `mapstructure:"handoff_capacity" validate:"omitempty,gt=0" yaml:"handoff_capacity"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// AdminConfig configures the admin/introspection HTTP server (chi-routed
// /healthz, /metrics, /debug/sessions, /debug/workers).
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// BufferConfig sizes pkg/bufpool's tiers. Values accept human-readable
// sizes ("4KiB", "64KiB", "1MiB") via bytesize.ByteSize's decode hook.
type BufferConfig struct {
	Small  bytesize.ByteSize `mapstructure:"small" yaml:"small"`
	Medium bytesize.ByteSize `mapstructure:"medium" yaml:"medium"`
	Large  bytesize.ByteSize `mapstructure:"large" yaml:"large"`
}

// StorageConfig selects the C5 storage table's backend.
type StorageConfig struct {
	// Backend is "memory" (default, non-persistent) or "badger" (embedded
	// LSM tree, persisted under RootDir/storage).
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=memory badger" yaml:"backend"`
}

// DefaultConfig returns vaultd's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:  ":9000",
		Workers: 4,
		RootDir: "/var/lib/vaultd",
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
			Profiling: ProfilingConfig{
				Enabled:      false,
				Endpoint:     "http://localhost:4040",
				ProfileTypes: []string{"cpu", "alloc_objects", "inuse_objects"},
			},
		},
		Limits: LimitsConfig{
			MaxSessions:     100_000,
			HandoffCapacity: 1000,
			IdleTimeout:     30 * time.Minute,
		},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
		Admin:   AdminConfig{Enabled: true, Addr: ":9091"},
		Buffers: BufferConfig{Small: 4 * bytesize.KiB, Medium: 64 * bytesize.KiB, Large: 1 * bytesize.MiB},
		Storage: StorageConfig{Backend: "memory"},
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Precedence, highest first: environment variables (VAULTD_*), the
// configuration file, then DefaultConfig's values. An environment variable
// overrides only a key the configuration file sets; when no file is found,
// DefaultConfig's values are returned and VAULTD_* variables are not read.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if !found {
		return cfg, Validate(cfg)
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// configDecodeHooks composes the custom ByteSize conversion with the two
// conversions viper applies by default (string duration, comma-separated
// slice); viper.DecodeHook replaces its defaults wholesale rather than
// layering on top of them, so both must be listed explicitly here.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts a config value to bytesize.ByteSize, accepting
// a human-readable string ("4KiB") or a bare number (YAML decodes an
// unquoted integer as int, float64 for anything with a decimal point).
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("VAULTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(filepath.Dir(GetDefaultConfigPath()))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

// GetDefaultConfigPath returns the conventional config file location under
// the user's config directory.
func GetDefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "vaultd", "config.yaml")
}
