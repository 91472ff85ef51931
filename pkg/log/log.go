// Package log provides the process-wide structured logger. Subsystems get
// scoped child loggers through WithModule.
package log

import (
	"log/slog"
	"os"
)

var (
	defaultLogger *slog.Logger
	levelVar      *slog.LevelVar
)

func init() {
	levelVar = &slog.LevelVar{}
	levelVar.Set(slog.LevelInfo)

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelVar,
	})
	defaultLogger = slog.New(handler)
}

// SetLevel sets the minimum level for all loggers, including child loggers
// already handed out.
func SetLevel(level slog.Level) { levelVar.Set(level) }

// SetDebug toggles between debug and info level.
func SetDebug(enabled bool) {
	if enabled {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// WithModule returns a logger scoped to a federation subsystem,
// e.g. WithModule("router") or WithModule("registry").
func WithModule(module string) *slog.Logger {
	return defaultLogger.With(slog.String("module", module))
}

// Debug logs at debug level on the default logger.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
