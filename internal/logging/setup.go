package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the application logger: a text handler on stderr at the given
// level, wrapped so the provided secrets (and known API key formats) are
// redacted from every record.
func New(level string, secrets ...string) *slog.Logger {
	return NewWriter(os.Stderr, level, secrets...)
}

// NewWriter is New with an explicit output, for tests.
func NewWriter(w io.Writer, level string, secrets ...string) *slog.Logger {
	redactor := NewRedactor()
	for _, s := range secrets {
		redactor.AddLiteral(s)
	}

	inner := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(NewRedactingHandler(inner, redactor))
}

// parseLevel maps a config level string onto slog. Unknown strings fall
// back to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
