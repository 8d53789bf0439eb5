// Package config loads and validates configuration for the OrchFlow
// concurrency core. Configuration comes from a YAML file, ORCHFLOW_*
// environment variables, and built-in defaults, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete core configuration
type Config struct {
	Lock    LockConfig    `mapstructure:"lock"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LockConfig tunes the resource lock manager and its deadlock detector
type LockConfig struct {
	// DeadlockCheckIntervalMs is how often the deadlock detector scans the
	// wait-for graph, in milliseconds. Shorter intervals bound detection
	// latency at the cost of CPU. (default: 1000)
	DeadlockCheckIntervalMs int `mapstructure:"deadlock_check_interval_ms"`
	// DefaultWaitTimeoutMs is the wait timeout applied to lock requests that
	// don't specify one. 0 means wait indefinitely. (default: 0)
	DefaultWaitTimeoutMs int `mapstructure:"default_wait_timeout_ms"`
	// MaxQueueDepthWarn logs a warning when a single resource's wait queue
	// grows past this depth. 0 disables the warning. (default: 32)
	MaxQueueDepthWarn int `mapstructure:"max_queue_depth_warn"`
}

// BreakerConfig holds the default settings applied to breakers created
// without an explicit configuration
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures in CLOSED state
	// that trips the breaker to OPEN. (default: 5)
	FailureThreshold int `mapstructure:"failure_threshold"`
	// SuccessThreshold is the number of successes in HALF_OPEN state required
	// to close the breaker. (default: 2)
	SuccessThreshold int `mapstructure:"success_threshold"`
	// TimeoutMs is the per-call timeout for wrapped operations, in
	// milliseconds. (default: 30000)
	TimeoutMs int `mapstructure:"timeout_ms"`
	// ResetTimeoutMs is how long an OPEN breaker waits before allowing a
	// half-open probe, in milliseconds. (default: 60000)
	ResetTimeoutMs int `mapstructure:"reset_timeout_ms"`
}

// WorkerConfig tunes the worker supervisor
type WorkerConfig struct {
	// MaxConcurrent limits how many supervised tasks run at once.
	// 0 means unlimited. (default: 0)
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// AcquirePriority is the default lock priority supervised tasks use when
	// a task doesn't set its own. (default: 0)
	AcquirePriority int `mapstructure:"acquire_priority"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// RunDir is the directory for the debug log. Empty means stderr.
	RunDir string `mapstructure:"run_dir"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Lock: LockConfig{
			DeadlockCheckIntervalMs: 1000,
			DefaultWaitTimeoutMs:    0,
			MaxQueueDepthWarn:       32,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			TimeoutMs:        30000,
			ResetTimeoutMs:   60000,
		},
		Worker: WorkerConfig{
			MaxConcurrent:   0,
			AcquirePriority: 0,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			RunDir:  "",
		},
	}
}

// DeadlockCheckInterval returns the detector interval as a time.Duration.
func (c *LockConfig) DeadlockCheckInterval() time.Duration {
	return time.Duration(c.DeadlockCheckIntervalMs) * time.Millisecond
}

// DefaultWaitTimeout returns the default wait timeout as a time.Duration.
// Zero means wait indefinitely.
func (c *LockConfig) DefaultWaitTimeout() time.Duration {
	return time.Duration(c.DefaultWaitTimeoutMs) * time.Millisecond
}

// Timeout returns the per-call timeout as a time.Duration.
func (c *BreakerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ResetTimeout returns the reset timeout as a time.Duration.
func (c *BreakerConfig) ResetTimeout() time.Duration {
	return time.Duration(c.ResetTimeoutMs) * time.Millisecond
}

// SetDefaults registers all default values with viper.
// Call this before reading the config file so defaults apply even when the
// file is missing or partial.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("lock.deadlock_check_interval_ms", defaults.Lock.DeadlockCheckIntervalMs)
	viper.SetDefault("lock.default_wait_timeout_ms", defaults.Lock.DefaultWaitTimeoutMs)
	viper.SetDefault("lock.max_queue_depth_warn", defaults.Lock.MaxQueueDepthWarn)

	viper.SetDefault("breaker.failure_threshold", defaults.Breaker.FailureThreshold)
	viper.SetDefault("breaker.success_threshold", defaults.Breaker.SuccessThreshold)
	viper.SetDefault("breaker.timeout_ms", defaults.Breaker.TimeoutMs)
	viper.SetDefault("breaker.reset_timeout_ms", defaults.Breaker.ResetTimeoutMs)

	viper.SetDefault("worker.max_concurrent", defaults.Worker.MaxConcurrent)
	viper.SetDefault("worker.acquire_priority", defaults.Worker.AcquirePriority)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.run_dir", defaults.Logging.RunDir)
}

// Init wires viper to the config file location and environment.
// If cfgFile is non-empty it is used directly; otherwise the standard
// locations are searched (see ConfigDir). Environment variables use the
// ORCHFLOW_ prefix with underscores for nesting, e.g.
// ORCHFLOW_LOCK_DEADLOCK_CHECK_INTERVAL_MS.
//
// A missing config file is not an error: defaults and environment apply.
func Init(cfgFile string) {
	SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ORCHFLOW")
	// Replace dots with underscores for nested keys in env vars
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Load unmarshals and validates the current viper state into a Config.
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
// unmarshaling or validation fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "orchflow")
	}
	// Fall back to ~/.config/orchflow
	home, err := os.UserHomeDir()
	if err != nil {
		return ".orchflow"
	}
	return filepath.Join(home, ".config", "orchflow")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
