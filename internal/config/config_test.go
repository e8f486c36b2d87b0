package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Pool.StartupTimeout() != 30*time.Second {
		t.Errorf("expected startup timeout 30s, got %s", cfg.Pool.StartupTimeout())
	}
	if cfg.Pool.MonitorInterval() != 15*time.Second {
		t.Errorf("expected monitor interval 15s, got %s", cfg.Pool.MonitorInterval())
	}
	if cfg.Nailgun.WorkdirBase == "" {
		t.Error("expected non-empty workdir base")
	}
	if cfg.API.Port != 8921 {
		t.Errorf("expected port 8921, got %d", cfg.API.Port)
	}
}

func TestLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("pool:\n  startupTimeoutSecs: 5\nnailgun:\n  distribution: /opt/dist\napi:\n  port: 9000\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Pool.StartupTimeout() != 5*time.Second {
		t.Errorf("expected startup timeout 5s, got %s", cfg.Pool.StartupTimeout())
	}
	if cfg.Nailgun.Distribution != "/opt/dist" {
		t.Errorf("expected /opt/dist, got %s", cfg.Nailgun.Distribution)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.API.Port)
	}
	// Unset fields keep their defaults.
	if cfg.Pool.MonitorIntervalSecs != 15 {
		t.Errorf("expected default monitor interval, got %d", cfg.Pool.MonitorIntervalSecs)
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.API.Port != Default().API.Port {
		t.Errorf("expected default port, got %d", cfg.API.Port)
	}
}

func TestLoadFrom_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\tnot yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestBaseDir(t *testing.T) {
	if BaseDir() == "" {
		t.Error("expected non-empty base dir")
	}
}
