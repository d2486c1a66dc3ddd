// Package config defines the supervision engine's configuration, loaded
// via viper from ~/.config/codelooper/config.yaml with environment
// variable overrides, and a watcher that hot-reloads tuning values while
// the supervisor runs.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete CodeLooper configuration.
type Config struct {
	Supervision SupervisionConfig `mapstructure:"supervision"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Rules       RulesConfig       `mapstructure:"rules"`
	Apps        AppsConfig        `mapstructure:"apps"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	History     HistoryConfig     `mapstructure:"history"`
}

// SupervisionConfig tunes the monitoring loop.
type SupervisionConfig struct {
	// IntervalMs is the supervision tick interval in milliseconds
	IntervalMs int `mapstructure:"interval_ms"`
	// MaxParallel bounds concurrent per-window supervision within a tick
	MaxParallel int `mapstructure:"max_parallel"`
	// GraceTicks is how many consecutive indicator-free ticks end positive work
	GraceTicks int `mapstructure:"grace_ticks"`
	// ObservationTicks is the post-intervention cooldown length in ticks
	ObservationTicks int `mapstructure:"observation_ticks"`
	// IdleTicks marks a window idle after this many quiet ticks (0 = disabled)
	IdleTicks int `mapstructure:"idle_ticks"`
	// UnrecoverableThreshold parks a window after this many consecutive failures
	UnrecoverableThreshold int `mapstructure:"unrecoverable_threshold"`
	// RemovalGraceTicks is how many ticks a dead app stays tracked before removal
	RemovalGraceTicks int `mapstructure:"removal_grace_ticks"`
}

// BackendConfig tunes accessibility-tree queries.
type BackendConfig struct {
	// QueryTimeoutMs bounds every backend call in milliseconds
	QueryTimeoutMs int `mapstructure:"query_timeout_ms"`
	// MaxDepth bounds accessibility-tree traversal
	MaxDepth int `mapstructure:"max_depth"`
}

// RulesConfig tunes the intervention rules.
type RulesConfig struct {
	// Ceiling is the per-rule execution ceiling per window
	Ceiling int64 `mapstructure:"ceiling"`
	// WarnMargin is how close to the ceiling limit warnings begin
	WarnMargin int64 `mapstructure:"warn_margin"`
	// StopAfterLoops enables the stop-after-loops rule
	StopAfterLoops bool `mapstructure:"stop_after_loops"`
	// ResumeConnection enables the resume-connection rule
	ResumeConnection bool `mapstructure:"resume_connection"`
}

// AppsConfig selects which applications to supervise.
type AppsConfig struct {
	// BundleIDs is the list of bundle identifiers to observe
	BundleIDs []string `mapstructure:"bundle_ids"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Dir is the log directory; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// PersistenceConfig controls the best-effort snapshot of locator caches
// and rule counters.
type PersistenceConfig struct {
	// Enabled controls whether snapshots are loaded and saved
	Enabled bool `mapstructure:"enabled"`
	// Path is the snapshot file; empty means {config dir}/state.yaml
	Path string `mapstructure:"path"`
}

// HistoryConfig controls the in-memory intervention history.
type HistoryConfig struct {
	// Size is the intervention history ring capacity
	Size int `mapstructure:"size"`
}

// Interval returns the tick interval as a time.Duration.
func (s *SupervisionConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// QueryTimeout returns the backend query timeout as a time.Duration.
func (b *BackendConfig) QueryTimeout() time.Duration {
	return time.Duration(b.QueryTimeoutMs) * time.Millisecond
}

// ResolvePath returns the snapshot file path, defaulting into the config
// directory.
func (p *PersistenceConfig) ResolvePath() string {
	if p.Path != "" {
		return p.Path
	}
	return filepath.Join(ConfigDir(), "state.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Supervision: SupervisionConfig{
			IntervalMs:             2000,
			MaxParallel:            4,
			GraceTicks:             2,
			ObservationTicks:       2,
			IdleTicks:              0, // Disabled by default
			UnrecoverableThreshold: 5,
			RemovalGraceTicks:      3,
		},
		Backend: BackendConfig{
			QueryTimeoutMs: 1500,
			MaxDepth:       10,
		},
		Rules: RulesConfig{
			Ceiling:          25,
			WarnMargin:       5,
			StopAfterLoops:   true,
			ResumeConnection: true,
		},
		Apps: AppsConfig{
			BundleIDs: []string{"com.todesktop.230313mzl4w4u92"},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "", // Empty means stderr
		},
		Persistence: PersistenceConfig{
			Enabled: true,
			Path:    "", // Empty means {config dir}/state.yaml
		},
		History: HistoryConfig{
			Size: 100,
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("supervision.interval_ms", defaults.Supervision.IntervalMs)
	viper.SetDefault("supervision.max_parallel", defaults.Supervision.MaxParallel)
	viper.SetDefault("supervision.grace_ticks", defaults.Supervision.GraceTicks)
	viper.SetDefault("supervision.observation_ticks", defaults.Supervision.ObservationTicks)
	viper.SetDefault("supervision.idle_ticks", defaults.Supervision.IdleTicks)
	viper.SetDefault("supervision.unrecoverable_threshold", defaults.Supervision.UnrecoverableThreshold)
	viper.SetDefault("supervision.removal_grace_ticks", defaults.Supervision.RemovalGraceTicks)

	viper.SetDefault("backend.query_timeout_ms", defaults.Backend.QueryTimeoutMs)
	viper.SetDefault("backend.max_depth", defaults.Backend.MaxDepth)

	viper.SetDefault("rules.ceiling", defaults.Rules.Ceiling)
	viper.SetDefault("rules.warn_margin", defaults.Rules.WarnMargin)
	viper.SetDefault("rules.stop_after_loops", defaults.Rules.StopAfterLoops)
	viper.SetDefault("rules.resume_connection", defaults.Rules.ResumeConnection)

	viper.SetDefault("apps.bundle_ids", defaults.Apps.BundleIDs)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("persistence.enabled", defaults.Persistence.Enabled)
	viper.SetDefault("persistence.path", defaults.Persistence.Path)

	viper.SetDefault("history.size", defaults.History.Size)
}

// Load reads the configuration from viper into a Config struct and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if
// loading fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codelooper")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codelooper"
	}
	return filepath.Join(home, ".config", "codelooper")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
