package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trailgate/internal/domain/ratelimit"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Fatalf("http defaults not applied: %+v", cfg.HTTP)
	}
	if cfg.Log.LevelStr != "debug" {
		t.Fatalf("level=%q", cfg.Log.LevelStr)
	}
	if cfg.RateLimit.GuardPreset != "api" || cfg.RateLimit.SweepInterval != time.Minute {
		t.Fatalf("rate limit defaults not applied: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Breaker.FailureThreshold != 5 {
		t.Fatalf("breaker defaults not applied: %+v", cfg.RateLimit.Breaker)
	}
	if cfg.Redis.Enabled || cfg.MySQL.Enabled {
		t.Fatalf("backends must be opt-in")
	}
	if cfg.HTTP.TrustProxy {
		t.Fatalf("forwarded headers must not be trusted by default")
	}
	if cfg.RateLimit.MaxCustomWindow != time.Hour {
		t.Fatalf("max custom window=%v want=1h", cfg.RateLimit.MaxCustomWindow)
	}
}

func TestParsePresetOverrides(t *testing.T) {
	raw := `
rate_limit:
  guard_preset: search
  presets:
    search:
      max_requests: 40
      window: 30s
    auth:
      max_requests: 3
      window: 10m
      block_duration: 1h
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	table, err := cfg.RateLimit.PresetTable()
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	search := table.Rule(ratelimit.PresetSearch)
	if search.MaxRequests != 40 || search.Window != 30*time.Second {
		t.Fatalf("search override=%+v", search)
	}
	auth := table.Rule(ratelimit.PresetAuth)
	if auth.BlockDuration != time.Hour {
		t.Fatalf("auth override=%+v", auth)
	}
	if got := table.Rule(ratelimit.PresetAPI).MaxRequests; got != 100 {
		t.Fatalf("api must keep built-in ceiling, got %d", got)
	}
	if got := MaxWindow(table); got != time.Hour {
		t.Fatalf("max window=%v want=1h", got)
	}
}

func TestParseRejectsInvalidPresets(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unknown guard", raw: "rate_limit:\n  guard_preset: nope\n"},
		{name: "unknown override", raw: "rate_limit:\n  presets:\n    nope:\n      max_requests: 1\n      window: 1s\n"},
		{name: "negative custom window", raw: "rate_limit:\n  max_custom_window: -1s\n"},
		{name: "zero ceiling", raw: "rate_limit:\n  presets:\n    api:\n      max_requests: 0\n      window: 1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte("http:\n  addr: \":9090\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("addr=%q", cfg.HTTP.Addr)
	}

	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	if _, err := New(); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
