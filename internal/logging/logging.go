// Package logging wires slog to a backend appropriate for the environment:
// a plain text handler in dev, zap in production.
package logging

import (
	"log/slog"
	"os"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
)

// Init builds the process logger and installs it as the slog default.
func Init(env, service string) *slog.Logger {
	var handler slog.Handler
	if env == "dev" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		zl, err := zap.NewProduction()
		if err != nil {
			// zap only fails on unwritable sinks; fall back rather than die
			handler = slog.NewJSONHandler(os.Stdout, nil)
		} else {
			handler = slogzap.Option{Level: slog.LevelInfo, Logger: zl}.NewZapHandler()
		}
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	return logger
}
