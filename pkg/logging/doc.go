// Package logging configures the slog default logger for labctl.
//
// Records are JSON on stderr and carry module and version attributes:
//
//	logging.SetDefaultStructuredLoggerWithLevel("labctl", version, cmd.String("log-level"))
//	slog.Info("stage completed", "stage", "certs", "duration", d)
//
// An empty level falls back to the LOG_LEVEL environment variable, then INFO.
// Debug records include the source location.
package logging
