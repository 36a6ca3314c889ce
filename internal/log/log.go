// Package log wires the process logger: a human console handler, an optional
// JSON file tee, and a clog-carrying context so every layer below pulls the
// same logger back out with clog.FromContext.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	charmlog "github.com/charmbracelet/log"
	slogmulti "github.com/samber/slog-multi"
)

// Options control the process-wide logging setup.
type Options struct {
	// Verbose drops the console threshold to debug.
	Verbose bool
	// FilePath, when set, tees every record to a JSON log file as well.
	FilePath string
}

// Setup builds the logger, installs it as both the context logger and the
// slog default, and returns the derived context plus a cleanup that flushes
// the file tee.
func Setup(ctx context.Context, opts Options) (context.Context, func(), error) {
	level := charmlog.InfoLevel
	if opts.Verbose {
		level = charmlog.DebugLevel
	}
	console := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	handler := slog.Handler(console)
	cleanup := func() {}
	if opts.FilePath != "" {
		logFile, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return ctx, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		fileHandler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		handler = slogmulti.Fanout(console, fileHandler)
		cleanup = func() { _ = logFile.Close() }
	}

	logger := clog.New(handler)
	ctx = clog.WithLogger(ctx, logger)
	slog.SetDefault(&logger.Logger)
	return ctx, cleanup, nil
}
