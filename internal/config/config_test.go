package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	content := `
api:
  base_url: "https://mail.test.com/api"
  timeout: 5s

dispatch:
  delay: 250ms

storage:
  dir: "/tmp/mailcannon-test"

status:
  listen_addr: ":9091"

logging:
  level: "debug"
  format: "json"
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://mail.test.com/api" {
		t.Errorf("API.BaseURL = %v, want https://mail.test.com/api", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("API.Timeout = %v, want 5s", cfg.API.Timeout)
	}
	if cfg.Dispatch.Delay != 250*time.Millisecond {
		t.Errorf("Dispatch.Delay = %v, want 250ms", cfg.Dispatch.Delay)
	}
	if cfg.Storage.Dir != "/tmp/mailcannon-test" {
		t.Errorf("Storage.Dir = %v, want /tmp/mailcannon-test", cfg.Storage.Dir)
	}
	if cfg.Status.ListenAddr != ":9091" {
		t.Errorf("Status.ListenAddr = %v, want :9091", cfg.Status.ListenAddr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %v, want debug", cfg.Logging.Level)
	}
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("{}\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("default API.Timeout = %v, want 10s", cfg.API.Timeout)
	}
	if cfg.Dispatch.Delay != 500*time.Millisecond {
		t.Errorf("default Dispatch.Delay = %v, want 500ms", cfg.Dispatch.Delay)
	}
	if cfg.Storage.Dir == "" {
		t.Error("default Storage.Dir is empty")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("default logging = %s/%s, want info/text", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() with missing file error = %v, want defaults", err)
	}
	if cfg.API.BaseURL == "" {
		t.Error("default API.BaseURL is empty")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.API.Timeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Dispatch.Delay = -time.Millisecond },
			wantErr: true,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)
			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
