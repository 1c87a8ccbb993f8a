// Package logger provides structured logging for kvwait.
//
//   - logger.go: slog-backed Logger, output formats and the dynamic level
//   - context.go: context propagation of the logger, connection ID and request ID
//   - redact.go: masking of credential attributes and stored values
package logger
