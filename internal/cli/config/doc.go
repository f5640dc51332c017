// Package config holds the glovectl configuration (~/.glovectl/config.yaml).
//
//   - spec.go: the Config structure and its defaults
//   - loader.go: layered loading (defaults, file, GLOVECTL_* env, flags)
//   - save.go: editing single keys in the file
package config
