// Package cmd implements the jsonprobe CLI commands using Cobra.
//
// Available commands:
//   - run: Execute test cases from JSON definition files
//   - validate: Check definition files without executing them
//   - list: Display the cases defined in files
//   - mock: Serve responses synthesized from definitions
//   - history: Show recorded runs
//   - init: Create a new jsonprobe project with example files
//   - version: Show jsonprobe version information
//
// Flags fall back to JSONPROBE_* environment variables, and both override
// values from jsonprobe.yaml.
package cmd
