package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/alpaca/internal/management"
	"github.com/muurk/alpaca/internal/session"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join("/tmp/xdg", "alpaca-discover") {
		t.Errorf("GetConfigDir() = %v", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
	if !strings.Contains(configPath, "alpaca-discover") {
		t.Errorf("GetConfigPath() = %v, should contain 'alpaca-discover'", configPath)
	}
}

func TestNew_MatchesSessionDefaults(t *testing.T) {
	cfg := New()
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if got, want := cfg.Discovery.Params(), session.DefaultParams(); got != want {
		t.Errorf("Params() = %+v, want %+v", got, want)
	}
	if cfg.Output.Format != FormatTable {
		t.Errorf("Format = %q, want table", cfg.Output.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestDiscovery_ParamsHTTPS(t *testing.T) {
	cfg := New()
	cfg.Discovery.HTTPS = true
	if cfg.Discovery.Params().ServiceType != management.ServiceHTTPS {
		t.Error("https: true should select ServiceHTTPS")
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Discovery.Port != 32227 {
		t.Errorf("Port = %d, want default", cfg.Discovery.Port)
	}
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
discovery:
  duration: 5s
  ipv6: true
  interfaces: [eth0]
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Discovery.Duration != 5*time.Second {
		t.Errorf("Duration = %v, want 5s", cfg.Discovery.Duration)
	}
	if !cfg.Discovery.IPv6 || !cfg.Discovery.IPv4 {
		t.Error("ipv6 should be enabled and ipv4 kept from defaults")
	}
	if cfg.Discovery.Polls != 2 || cfg.Discovery.Interval != 100*time.Millisecond {
		t.Errorf("unset keys should keep defaults, got polls=%d interval=%v", cfg.Discovery.Polls, cfg.Discovery.Interval)
	}
	if len(cfg.Discovery.Interfaces) != 1 || cfg.Discovery.Interfaces[0] != "eth0" {
		t.Errorf("Interfaces = %v", cfg.Discovery.Interfaces)
	}
	if cfg.Output == nil || cfg.Output.Format != FormatTable {
		t.Error("missing output section should get defaults")
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"bad yaml", "version: [1", "failed to parse"},
		{"wrong version", "version: 2\n", "unsupported config version"},
		{"bad port", "version: 1\ndiscovery:\n  port: 80\n", "invalid discovery settings"},
		{"bad format", "version: 1\noutput:\n  format: xml\n", "invalid output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFrom(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFrom() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := New()
	cfg.Discovery.Polls = 4
	cfg.Discovery.Interval = 250 * time.Millisecond
	cfg.Discovery.ResolveDNS = true
	cfg.Output.Format = FormatJSON
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Alpaca Discovery Configuration File") {
		t.Error("saved file should start with the header comment")
	}
	if !strings.Contains(string(data), "interval: 250ms") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if loaded.Discovery.Params() != cfg.Discovery.Params() {
		t.Errorf("round trip mismatch: %+v vs %+v", loaded.Discovery.Params(), cfg.Discovery.Params())
	}
	if loaded.Output.Format != FormatJSON {
		t.Errorf("Format = %q", loaded.Output.Format)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Error("WriteDefault() should refuse to overwrite")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("WriteDefault(overwrite) error = %v", err)
	}
}

func TestLoad_UsesXDGConfigHome(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := New()
	cfg.Discovery.Port = 40000
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Reload()
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if loaded.Discovery.Port != 40000 {
		t.Errorf("Port = %d, want 40000", loaded.Discovery.Port)
	}
}
