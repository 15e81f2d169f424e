package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the process logger. Development gets colorized console output,
// production gets JSON for log shippers.
func New(level slog.Level, development bool) *slog.Logger {
	var handler slog.Handler
	if development {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
