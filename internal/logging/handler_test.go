package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactsLiteralSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWriter(&buf, "info", "super-secret-value")

	logger.Info("provider request", "api_key", "super-secret-value")

	out := buf.String()
	if strings.Contains(out, "super-secret-value") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, RedactPlaceholder) {
		t.Errorf("placeholder missing: %s", out)
	}
}

func TestRedactsKnownKeyFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWriter(&buf, "info")

	logger.Error("request failed",
		"error", "401 from provider with key sk-abcdefghijklmnopqrstuvwxyz123456")

	out := buf.String()
	if strings.Contains(out, "sk-abcdefghijklmnopqrstuvwxyz123456") {
		t.Errorf("API key leaked: %s", out)
	}
}

func TestRedactsWithAttrsAndMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWriter(&buf, "info", "tok-12345")

	logger.With("token", "tok-12345").Info("key tok-12345 rejected")

	out := buf.String()
	if strings.Contains(out, "tok-12345") {
		t.Errorf("secret leaked: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWriter(&buf, "warn")

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info record emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "emitted") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
