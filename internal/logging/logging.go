package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/devnovate/api/config"
)

// New returns the process logger for env: human-readable debug output
// locally, JSON at info level everywhere else.
func New(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvDev, config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
