package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig controla o logger. Format é "json" (padrão) ou "text".
type LogConfig struct {
	Level  string
	Format string
	Output io.Writer
}

// NewLogger constrói um *slog.Logger a partir da configuração.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler).With(slog.String("service", "nominatim-proxy"))
}

// ParseLevel aceita debug, info, warn/warning e error; o resto vira info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
