// Package repl provides the interactive glovectl shell.
//
//   - repl.go: read-eval-print loop and argument splitting
//   - completer.go: completion of commands and page paths
//   - history.go: persisted command history
package repl
