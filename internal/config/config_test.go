package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
  password: swordfish
log:
  level: debug
  journal: /var/lib/hub/log.db
monitor:
  interval: 2s
variables:
  - name: depth
    default: 0
  - name: max_depth
    default: 30
    readonly: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q, want 0.0.0.0:9000", cfg.Addr())
	}
	if cfg.Server.Password != "swordfish" {
		t.Errorf("password = %q", cfg.Server.Password)
	}
	if cfg.Server.MaxClients != 128 {
		t.Errorf("max_clients default = %d, want 128", cfg.Server.MaxClients)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Journal != "/var/lib/hub/log.db" {
		t.Errorf("log config = %+v", cfg.Log)
	}
	if time.Duration(cfg.Monitor.Interval) != 2*time.Second || !cfg.Monitor.Enabled {
		t.Errorf("monitor config = %+v", cfg.Monitor)
	}
	if len(cfg.Variables) != 2 {
		t.Fatalf("got %d variables, want 2", len(cfg.Variables))
	}
	if !cfg.Variables[1].ReadOnly || cfg.Variables[1].Default != 30 {
		t.Errorf("max_depth = %+v", cfg.Variables[1])
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Addr() != want.Addr() {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), want.Addr())
	}
	if cfg.Server.Password != "" {
		t.Errorf("expected no default password, got %q", cfg.Server.Password)
	}
	if cfg.Log.Level != "normal" || !cfg.Log.ReplicateStdout {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "server: [", "parsing config"},
		{"bad port", "server:\n  port: 70000\n", "invalid port"},
		{"bad max clients", "server:\n  max_clients: -1\n", "max_clients"},
		{"bad monitor interval", "monitor:\n  enabled: true\n  interval: 0\n", "monitor interval"},
		{"duplicate variable", "variables:\n  - name: depth\n  - name: depth\n", "duplicate variable"},
		{"unnamed variable", "variables:\n  - default: 1\n", "empty name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
