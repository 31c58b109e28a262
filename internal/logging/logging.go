package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the process-wide slog handler. Supported formats are
// "json" (default) and "text".
func Init(service, format string) *slog.Logger {
	format = strings.ToLower(strings.TrimSpace(format))

	var handler slog.Handler
	warnUnknown := false
	switch format {
	case "", "json":
		handler = slog.NewJSONHandler(os.Stdout, nil)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, nil)
	default:
		handler = slog.NewJSONHandler(os.Stdout, nil)
		warnUnknown = true
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)

	if warnUnknown {
		logger.Warn("unknown log format, defaulting to json", "format", format)
	}
	return logger
}
