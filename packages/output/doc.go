// Package output provides formatters for displaying run results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration, one suite per definition file
//   - TAP: Test Anything Protocol format
//
// Each formatter implements FormatResult, FormatError and FormatHeader.
// The JSON, JUnit and TAP formatters accumulate results and write them on Flush.
package output
