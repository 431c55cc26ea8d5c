/*
PURPOSE:
  Provides the structured logger for harstream.
  Wraps slog so every package logs the same way.

REQUIREMENTS:
  User-specified:
  - Quiet by default; the HAR document is the product, not the log.

  Implementation-discovered:
  - `record` runs unattended, so a JSON handler must be selectable.
  - Logs go to stderr so `--output -` can stream the HAR to stdout.

ARCHITECTURE INTEGRATION:
  - Used everywhere.
  - Configured by: internal/cli (log_level / log_format)

ERROR HANDLING:
  - Unknown levels and formats fall back to info / text.

IMPLEMENTATION RULES:
  - Use `log/slog` (Go 1.21+).

USAGE:
  output.Logger.Info("message", "key", "value")
  output.SetLogger(output.NewLogger(os.Stderr, "debug", "json"))

RELATED FILES:
  - internal/config/config.go
*/

package output

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

func init() {
	Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// SetLogger allows overriding the default logger (e.g. for testing or config changes)
func SetLogger(l *slog.Logger) {
	Logger = l
}

// NewLogger builds a logger writing to w at the given level ("debug", "info",
// "warn", "error") in the given format ("text" or "json").
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
