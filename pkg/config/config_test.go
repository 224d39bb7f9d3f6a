package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "zuulApiUrl: https://zuul.example.org/api\n")

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", c.Port)
	}
	if c.Store.Type != "memory" {
		t.Errorf("Store.Type = %q, want default memory", c.Store.Type)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "zuulApiUrl: https://zuul.example.org/api\nport: 9000\n")
	t.Setenv("PORT", "9100")
	t.Setenv("STORE_TYPE", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Port != 9100 {
		t.Errorf("Port = %d, want env override 9100", c.Port)
	}
	if c.Store.Type != "redis" || c.Store.Redis.Addr != "redis.internal:6379" {
		t.Errorf("store config = %+v, want env overrides applied", c.Store)
	}
}

func TestLoadConfigOptionalEmptyPath(t *testing.T) {
	t.Setenv("ZUUL_API_URL", "https://zuul.example.org/api")

	c, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional: %v", err)
	}
	if c.ZuulAPIURL != "https://zuul.example.org/api" {
		t.Errorf("ZuulAPIURL = %q", c.ZuulAPIURL)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing api url", func(c *Config) { c.ZuulAPIURL = "" }, true},
		{"relative api url", func(c *Config) { c.ZuulAPIURL = "/api" }, true},
		{"bad port", func(c *Config) { c.Port = -1 }, true},
		{"unknown store", func(c *Config) { c.Store.Type = "etcd" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			c.ZuulAPIURL = "https://zuul.example.org/api"
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
