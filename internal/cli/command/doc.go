// Package command provides the glovectl command tree.
//
// It uses urfave/cli/v2 for command parsing and supports both
// single-command mode and the interactive shell:
//
//   - root.go: application, global flags, runtime lookup
//   - runtime.go: lazily built configuration, logger and session stack
//   - auth.go: login, register, logout, whoami, refresh
//   - navigate.go: open, routes and the page views
//   - transfer.go: upload and download
//   - config.go: config show, set, path and keys
//   - system.go: version and metrics
//   - shell.go: the interactive shell
package command
