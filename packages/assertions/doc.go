// Package assertions provides the response validators used by jsonprobe.
//
// Supported validators:
//   - exact: the value at the path deep-equals the expected value, type included
//   - contains: the value at the path is a string containing the expected text
//
// Validators are a closed set. Names are parsed once, when test definitions
// are loaded, so an unknown validator never reaches execution.
package assertions
