package agent

import "time"

// Default configuration values.
const (
	// DefaultModelTimeout bounds a single model invocation, streaming
	// included. The original web app had no bound at all.
	DefaultModelTimeout = 2 * time.Minute
)

// Config controls loop behavior.
type Config struct {
	// SystemPrompt is sent to the model on every invocation.
	// Empty means DefaultSystemPrompt.
	SystemPrompt string

	// ModelTimeout bounds each model invocation end to end.
	ModelTimeout time.Duration
}

// withDefaults returns a copy with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = DefaultModelTimeout
	}
	return c
}
