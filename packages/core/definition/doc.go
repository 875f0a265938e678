// Package definition loads jsonprobe test cases from JSON definition files.
//
// A definition file is a JSON array of test cases:
//
//	[
//	  {
//	    "name": "get user",
//	    "request": {"method": "GET", "url": "users/1"},
//	    "assertions": {"name": {"validator": "exact", "expected": "Ada"}}
//	  }
//	]
//
// Files matching test_definition*.json in a directory are loaded in sorted
// filename order and concatenated. Every file is checked against a JSON
// Schema before decoding, so structural mistakes fail at load time and name
// the offending file.
package definition
