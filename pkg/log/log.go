// Package log configures structured logging for provisio binaries.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the process-wide logger at the given level. Unknown level
// names fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	err := level.UnmarshalText([]byte(logLevel))
	if err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a child of the process logger tagged with the module
// name, the attribute every package here logs under.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
