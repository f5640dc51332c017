// Package logger provides structured logging for glovectl.
//
// It wraps log/slog behind a small Logger interface:
//
//   - logger.go: handler construction and the process-wide level
//   - context.go: request ID propagation from context into records
//   - redact.go: masking of bearer tokens, JWTs and secret-named fields
//
// The CLI logs to stderr at warn level unless configured otherwise, so
// diagnostic output never mixes with command output on stdout.
package logger
