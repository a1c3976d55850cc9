package model

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Portal.BaseURL != DefaultBaseURL {
		t.Errorf("base url = %q", cfg.Portal.BaseURL)
	}
	if cfg.Portal.Timeout() != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Portal.Timeout())
	}
	if cfg.Poll.Interval() != 30*time.Minute {
		t.Errorf("interval = %v", cfg.Poll.Interval())
	}
	if cfg.Server.Addr != "127.0.0.1:8123" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MMH_POLL_INTERVAL_MIN", "5")
	t.Setenv("MMH_PORTAL_BASE_URL", "http://localhost:9999/")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Poll.Interval() != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", cfg.Poll.Interval())
	}
	if cfg.Portal.BaseURL != "http://localhost:9999" {
		t.Errorf("base url = %q, want trailing slash trimmed", cfg.Portal.BaseURL)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := defaultAppConfig()
	cfg.Poll.IntervalMin = 45
	cfg.Server.Addr = "0.0.0.0:9000"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Poll.IntervalMin != 45 {
		t.Errorf("interval_min = %d, want 45", got.Poll.IntervalMin)
	}
	if got.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("addr = %q", got.Server.Addr)
	}
}
