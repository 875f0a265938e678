package output

import (
	"fmt"
	"io"
	"os"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/runner"
	"github.com/fatih/color"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	order, groups := groupBySource(result.Results)
	for _, src := range order {
		fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+src))

		for _, r := range groups[src] {
			if r.Skipped {
				if r.SkipReason == runner.SkipFiltered && !f.verbose {
					continue
				}
				fmt.Fprintf(f.writer, "  %s %s (%s)\n", yellow("-"), r.Name, r.SkipReason)
				continue
			}

			if r.Error != nil {
				fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
				fmt.Fprintf(f.writer, "    %s %v\n", red("→"), r.Error)
				continue
			}

			symbol := green("✓")
			if !r.Passed {
				symbol = red("✗")
			}

			fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

			if f.verbose && r.Response != nil {
				fmt.Fprintf(f.writer, "    Status: %d, attempts: %d\n", r.Response.StatusCode, r.Response.Attempts)
			}

			if a := r.FailedAssertion(); a != nil {
				fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), a.Path, a.Validator)
				fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
				actual := formatValue(a.Actual, 100)
				if !a.Present {
					actual = "(missing)"
				}
				fmt.Fprintf(f.writer, "      Actual:   %s\n", actual)
				if a.Message != "" {
					fmt.Fprintf(f.writer, "      %s\n", a.Message)
				}
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	if l := result.Latency; l != nil {
		fmt.Fprintf(f.writer, "Latency: p50 %dms, p95 %dms, p99 %dms, max %dms\n",
			l.P50.Milliseconds(), l.P95.Milliseconds(), l.P99.Milliseconds(), l.Max.Milliseconds())
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("jsonprobe"), version)
}
