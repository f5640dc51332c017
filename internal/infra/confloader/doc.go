// Package confloader merges layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables (GLOVECTL_ prefix)
//  3. The YAML configuration file
//  4. Defaults
//
// Watcher reports changes to the configuration file.
package confloader
