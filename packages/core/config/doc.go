// Package config handles configuration loading and management for jsonprobe.
//
// It provides functionality for:
//   - Loading configuration from jsonprobe.yaml, .jsonprobe.yaml or jsonprobe.config.json
//   - Default configuration values
//   - Merging file settings with command-line overrides
package config
