package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Agent     AgentConfig     `yaml:"agent"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls the HTTP gateway.
type ServerConfig struct {
	// Listen is the address the gateway binds to.
	Listen string `yaml:"listen"`

	// AdminToken guards the admin endpoints. Empty disables them.
	AdminToken string `yaml:"admin_token,omitempty"`
}

// ProviderConfig selects and configures the model provider.
type ProviderConfig struct {
	// BaseURL is the OpenAI-compatible API root.
	BaseURL string `yaml:"base_url"`

	// APIKey is the bearer token sent to the provider. Prefer APIKeyEnv.
	APIKey string `yaml:"api_key,omitempty"`

	// APIKeyEnv names an environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// Model is the model identifier requested from the provider.
	Model string `yaml:"model"`

	// MaxTokens caps completion length. Zero uses the provider default.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Timeout bounds a single HTTP request to the provider.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// AgentConfig tunes the orchestration loop.
type AgentConfig struct {
	// SystemPrompt overrides the built-in sales persona when set.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// ModelTimeout bounds one model invocation, streaming included.
	ModelTimeout time.Duration `yaml:"model_timeout,omitempty"`
}

// SessionsConfig bounds the in-memory session store.
type SessionsConfig struct {
	// Max caps concurrent sessions. Zero means unlimited.
	Max int `yaml:"max,omitempty"`

	// MaxIdle is the idle duration after which a session is pruned.
	MaxIdle time.Duration `yaml:"max_idle"`

	// PruneSchedule is the cron expression for the prune job.
	PruneSchedule string `yaml:"prune_schedule"`
}

// ArchiveConfig controls conversation persistence on finalize.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file location.
	Path string `yaml:"path,omitempty"`
}

// TelemetryConfig controls OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector address (host:port).
	Endpoint string `yaml:"endpoint,omitempty"`

	// ServiceName overrides the reported service.name resource attribute.
	ServiceName string `yaml:"service_name,omitempty"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns a Config populated with defaults. Load starts from this
// so absent YAML keys keep their default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: "127.0.0.1:8080",
		},
		Provider: ProviderConfig{
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o",
		},
		Sessions: SessionsConfig{
			MaxIdle:       30 * time.Minute,
			PruneSchedule: "*/5 * * * *",
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    "concierge.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
