// Package buildinfo exposes the version of the running binary.
//
// Release builds inject values with ldflags:
//
//	go build -ldflags "-X github.com/dataglove/glovectl/internal/infra/buildinfo.Version=v1.2.0"
//
// Development builds fall back to the module's VCS stamp.
package buildinfo
