package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "empty server address",
			mutate: func(c *Config) { c.Server.Address = "" },
		},
		{
			name:   "unknown signal backend",
			mutate: func(c *Config) { c.Signal.Backend = "carrier-pigeon" },
		},
		{
			name:   "zero tick interval",
			mutate: func(c *Config) { c.Session.TickInterval = 0 },
		},
		{
			name:   "zero sample interval",
			mutate: func(c *Config) { c.Session.SampleInterval = 0 },
		},
		{
			name:   "zero negotiation timeout",
			mutate: func(c *Config) { c.WebRTC.NegotiationTimeout = 0 },
		},
		{
			name:   "half-open port range",
			mutate: func(c *Config) { c.WebRTC.PortRange.Min = 10000 },
		},
		{
			name: "inverted port range",
			mutate: func(c *Config) {
				c.WebRTC.PortRange.Min = 20000
				c.WebRTC.PortRange.Max = 10000
			},
		},
		{
			name: "redis backend without address",
			mutate: func(c *Config) {
				c.Signal.Backend = "redis"
				c.Redis.Address = ""
			},
		},
		{
			name: "tracing enabled without endpoint",
			mutate: func(c *Config) {
				c.Monitoring.TracingEnabled = true
				c.Monitoring.JaegerEndpoint = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Signal.Backend != "websocket" {
		t.Errorf("expected default backend, got %s", cfg.Signal.Backend)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	yaml := `
signal:
  backend: memory
session:
  tick_interval: 2s
  speaking_threshold: 42
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Signal.Backend != "memory" {
		t.Errorf("expected backend memory, got %s", cfg.Signal.Backend)
	}
	if cfg.Session.TickInterval != 2*time.Second {
		t.Errorf("expected 2s tick interval, got %s", cfg.Session.TickInterval)
	}
	if cfg.Session.SpeakingThreshold != 42 {
		t.Errorf("expected threshold 42, got %d", cfg.Session.SpeakingThreshold)
	}
	// untouched sections keep defaults
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default server address, got %s", cfg.Server.Address)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GDROOM_SIGNAL_BACKEND", "memory")
	t.Setenv("GDROOM_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Signal.Backend != "memory" {
		t.Errorf("expected env override for backend, got %s", cfg.Signal.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env override for log level, got %s", cfg.Logging.Level)
	}
}
