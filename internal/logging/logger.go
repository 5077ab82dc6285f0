package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a colored text logger in the dev environment and a JSON
// logger otherwise.
func New(level slog.Level, appEnv, version, appName string) *slog.Logger {
	return newLogger(os.Stderr, level, appEnv, version, appName)
}

func newLogger(w io.Writer, level slog.Level, appEnv, version, appName string) *slog.Logger {
	if appEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  level == slog.LevelDebug,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", appEnv,
	)
}
