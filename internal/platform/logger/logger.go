package logger

import (
	"log/slog"
	"os"
)

// New returns the application logger. JSON output keeps log lines parseable
// by whatever ships them.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
