package blazedb

import (
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging installs a slog.TextHandler as the default logger and
// sets its level from BLAZEDB_LOG_LEVEL (DEBUG/WARN/ERROR, default INFO).
// Applications that want BlazeDB's default logging call this once at
// startup; library code never calls it on the caller's behalf.
func ConfigureLogging() {
	logLevel.Set(slog.LevelInfo)

	switch os.Getenv("BLAZEDB_LOG_LEVEL") {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel changes the level of the logger installed by ConfigureLogging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
