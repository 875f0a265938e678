// Package runner executes test cases loaded from definition files.
//
// Cases run one at a time in file order. Each case:
//   - substitutes the session access token into its headers
//   - sends its request through the retrying HTTP client
//   - checks each assertion against the decoded JSON body, stopping at the first failure
//
// A run can be narrowed with a name filter and stopped early with bail mode.
// Response latencies are summarised with an HDR histogram.
package runner
