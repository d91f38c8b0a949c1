package logging

import (
	"io"
	"log/slog"
	"os"
)

// SetupJSON sets slog's default logger to use JSON output at the given level.
func SetupJSON(level slog.Level) {
	SetupJSONTo(os.Stdout, level)
}

// SetupJSONTo is SetupJSON with an explicit sink. Every record carries the
// service name so lines from the api, migrator and bankctl can share a stream.
func SetupJSONTo(w io.Writer, level slog.Level) {
	logger := slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
	).With("service", "duxbank")
	slog.SetDefault(logger)
}
