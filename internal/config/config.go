// Package config holds the beacon configuration, loaded via viper from
// the config file, environment (BEACON_ prefix), and flags, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete beacon configuration
type Config struct {
	Lease   LeaseConfig   `mapstructure:"lease"`
	Spec    SpecConfig    `mapstructure:"spec"`
	Message MessageConfig `mapstructure:"message"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LeaseConfig controls claim lease behavior
type LeaseConfig struct {
	// TTLSeconds is the default lease duration when a claim does not ask
	// for one. Requested TTLs are clamped to [min, max].
	TTLSeconds    int `mapstructure:"ttl_seconds"`
	MinTTLSeconds int `mapstructure:"min_ttl_seconds"`
	MaxTTLSeconds int `mapstructure:"max_ttl_seconds"`
}

// SpecConfig controls the task graph document
type SpecConfig struct {
	// TaskIDPrefix is the prefix for autogenerated task ids
	TaskIDPrefix string `mapstructure:"task_id_prefix"`
	// LockTimeoutSeconds bounds the wait for the spec write lock
	LockTimeoutSeconds int `mapstructure:"lock_timeout_seconds"`
}

// MessageConfig controls the message board
type MessageConfig struct {
	// WaitTimeoutSeconds is the default timeout for msg wait (0 = no timeout)
	WaitTimeoutSeconds int `mapstructure:"wait_timeout_seconds"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// File overrides the default log path under the beacon directory
	File string `mapstructure:"file"`
}

// TTL returns the default lease duration.
func (c *LeaseConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// MinTTL returns the lower clamp bound for requested lease TTLs.
func (c *LeaseConfig) MinTTL() time.Duration {
	return time.Duration(c.MinTTLSeconds) * time.Second
}

// MaxTTL returns the upper clamp bound for requested lease TTLs.
func (c *LeaseConfig) MaxTTL() time.Duration {
	return time.Duration(c.MaxTTLSeconds) * time.Second
}

// LockTimeout returns the spec write-lock wait bound.
func (c *SpecConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// WaitTimeout returns the default msg wait timeout.
func (c *MessageConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSeconds) * time.Second
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Lease: LeaseConfig{
			TTLSeconds:    900,
			MinTTLSeconds: 60,
			MaxTTLSeconds: 86400,
		},
		Spec: SpecConfig{
			TaskIDPrefix:       "T",
			LockTimeoutSeconds: 5,
		},
		Message: MessageConfig{
			WaitTimeoutSeconds: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("lease.ttl_seconds", defaults.Lease.TTLSeconds)
	viper.SetDefault("lease.min_ttl_seconds", defaults.Lease.MinTTLSeconds)
	viper.SetDefault("lease.max_ttl_seconds", defaults.Lease.MaxTTLSeconds)

	viper.SetDefault("spec.task_id_prefix", defaults.Spec.TaskIDPrefix)
	viper.SetDefault("spec.lock_timeout_seconds", defaults.Spec.LockTimeoutSeconds)

	viper.SetDefault("message.wait_timeout_seconds", defaults.Message.WaitTimeoutSeconds)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load reads the configuration from viper into a Config struct and validates it
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
// unmarshaling fails
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "beacon")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".beacon"
	}
	return filepath.Join(home, ".config", "beacon")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "lease.ttl_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for invalid values
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Lease.TTLSeconds <= 0 {
		errs = append(errs, ValidationError{"lease.ttl_seconds", c.Lease.TTLSeconds, "must be positive"})
	}
	if c.Lease.MinTTLSeconds <= 0 {
		errs = append(errs, ValidationError{"lease.min_ttl_seconds", c.Lease.MinTTLSeconds, "must be positive"})
	}
	if c.Lease.MaxTTLSeconds < c.Lease.MinTTLSeconds {
		errs = append(errs, ValidationError{"lease.max_ttl_seconds", c.Lease.MaxTTLSeconds, "must be >= lease.min_ttl_seconds"})
	}
	if c.Spec.TaskIDPrefix == "" {
		errs = append(errs, ValidationError{"spec.task_id_prefix", c.Spec.TaskIDPrefix, "must not be empty"})
	}
	if c.Spec.LockTimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{"spec.lock_timeout_seconds", c.Spec.LockTimeoutSeconds, "must be positive"})
	}
	if c.Message.WaitTimeoutSeconds < 0 {
		errs = append(errs, ValidationError{"message.wait_timeout_seconds", c.Message.WaitTimeoutSeconds, "must be >= 0"})
	}

	level := strings.ToLower(c.Logging.Level)
	valid := false
	for _, l := range validLogLevels {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, ValidationError{"logging.level", c.Logging.Level, "must be one of debug, info, warn, error"})
	}

	return errs
}
