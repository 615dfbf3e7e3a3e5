package config

import (
	"errors"
	"fmt"
	"net"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the structural validity of a Config. All problems are
// reported at once via errors.Join so operators fix a config in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Listen == "" {
		errs = append(errs, errors.New("config: server.listen is required"))
	} else if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		errs = append(errs, fmt.Errorf("config: server.listen %q: %w", cfg.Server.Listen, err))
	}

	if cfg.Provider.BaseURL == "" {
		errs = append(errs, errors.New("config: provider.base_url is required"))
	}
	if cfg.Provider.Model == "" {
		errs = append(errs, errors.New("config: provider.model is required"))
	}
	if cfg.Provider.APIKey == "" && cfg.Provider.APIKeyEnv == "" {
		errs = append(errs, errors.New("config: one of provider.api_key or provider.api_key_env is required"))
	}
	if cfg.Provider.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("config: provider.max_tokens must not be negative, got %d", cfg.Provider.MaxTokens))
	}

	if cfg.Agent.ModelTimeout < 0 {
		errs = append(errs, errors.New("config: agent.model_timeout must not be negative"))
	}

	if cfg.Sessions.Max < 0 {
		errs = append(errs, fmt.Errorf("config: sessions.max must not be negative, got %d", cfg.Sessions.Max))
	}
	if cfg.Sessions.MaxIdle <= 0 {
		errs = append(errs, errors.New("config: sessions.max_idle must be positive"))
	}

	if cfg.Archive.Enabled && cfg.Archive.Path == "" {
		errs = append(errs, errors.New("config: archive.path is required when archive is enabled"))
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("config: telemetry.endpoint is required when telemetry is enabled"))
	}

	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}

	return errors.Join(errs...)
}
