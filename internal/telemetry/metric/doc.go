// Package metric provides Prometheus metrics for glovectl.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: private registry, request/session/navigation metrics
//   - collector.go: custom collector reporting the live session state
//
// The CLI is short-lived, so metrics are not served over HTTP by default;
// `glovectl metrics` and the shell's `metrics` command dump the registry in
// the Prometheus text format.
package metric
