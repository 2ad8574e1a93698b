package testutil

import (
	"log/slog"
)

// DiscardLogger returns a slog.Logger that discards all output. Use it
// to keep test logs quiet; it is interchangeable with log.NewNop().
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
