package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
provider:
  model: gpt-4o-mini
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:8080" {
		t.Errorf("listen = %q, want default", cfg.Server.Listen)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want override", cfg.Provider.Model)
	}
	if cfg.Provider.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("api_key_env = %q, want default", cfg.Provider.APIKeyEnv)
	}
	if cfg.Sessions.MaxIdle != 30*time.Minute {
		t.Errorf("max_idle = %v, want default", cfg.Sessions.MaxIdle)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("CONCIERGE_TEST_MODEL", "gpt-4o")

	path := writeConfig(t, `
server:
  listen: "${CONCIERGE_TEST_LISTEN:-0.0.0.0:9090}"
provider:
  model: "${CONCIERGE_TEST_MODEL}"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.Model != "gpt-4o" {
		t.Errorf("model = %q, want env value", cfg.Provider.Model)
	}
	if cfg.Server.Listen != "0.0.0.0:9090" {
		t.Errorf("listen = %q, want fallback default", cfg.Server.Listen)
	}
}

func TestLoadRejectsUnresolvedVariables(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
provider:
  api_key: "${CONCIERGE_TEST_DEFINITELY_UNSET}"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "CONCIERGE_TEST_DEFINITELY_UNSET") {
		t.Errorf("error does not name the variable: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantErrs []string
	}{
		{"defaults are valid", func(*Config) {}, nil},
		{
			"missing listen",
			func(c *Config) { c.Server.Listen = "" },
			[]string{"server.listen"},
		},
		{
			"listen without port",
			func(c *Config) { c.Server.Listen = "localhost" },
			[]string{"server.listen"},
		},
		{
			"missing model and key",
			func(c *Config) { c.Provider.Model = ""; c.Provider.APIKeyEnv = "" },
			[]string{"provider.model", "provider.api_key"},
		},
		{
			"negative max tokens",
			func(c *Config) { c.Provider.MaxTokens = -1 },
			[]string{"provider.max_tokens"},
		},
		{
			"archive without path",
			func(c *Config) { c.Archive.Path = "" },
			[]string{"archive.path"},
		},
		{
			"telemetry without endpoint",
			func(c *Config) { c.Telemetry.Enabled = true },
			[]string{"telemetry.endpoint"},
		},
		{
			"bad log level",
			func(c *Config) { c.Log.Level = "verbose" },
			[]string{"log.level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if len(tt.wantErrs) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			for _, want := range tt.wantErrs {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %s", err, want)
				}
			}
		})
	}
}
