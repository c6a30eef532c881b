package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaultIsValid(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Fatalf("default config invalid: %v", ValidationErrors(errs))
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Lease.TTLSeconds != 900 {
		t.Errorf("Lease.TTLSeconds = %d, want 900", cfg.Lease.TTLSeconds)
	}
	if cfg.Spec.TaskIDPrefix != "T" {
		t.Errorf("Spec.TaskIDPrefix = %q, want T", cfg.Spec.TaskIDPrefix)
	}
}

func TestLoadOverride(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()
	viper.Set("lease.ttl_seconds", 300)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Lease.TTLSeconds != 300 {
		t.Errorf("Lease.TTLSeconds = %d, want 300", cfg.Lease.TTLSeconds)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero ttl", func(c *Config) { c.Lease.TTLSeconds = 0 }, "lease.ttl_seconds"},
		{"max below min", func(c *Config) { c.Lease.MaxTTLSeconds = 30 }, "lease.max_ttl_seconds"},
		{"empty prefix", func(c *Config) { c.Spec.TaskIDPrefix = "" }, "spec.task_id_prefix"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"negative wait", func(c *Config) { c.Message.WaitTimeoutSeconds = -1 }, "message.wait_timeout_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation error")
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s in %v", tt.field, ValidationErrors(errs))
			}
		})
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{"lease.ttl_seconds", 0, "must be positive"},
		{"logging.level", "trace", "must be one of debug, info, warn, error"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("message %q should count errors", msg)
	}
}
