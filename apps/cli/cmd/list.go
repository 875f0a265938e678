package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [file|directory...]",
	Short: "List all tests in definition files",
	Long: `List the test cases defined in test_definition*.json files, in the
order they would run.

Examples:
  jsonprobe list
  jsonprobe list ./tests/
  jsonprobe list test_definitions_users.json`,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, "")
	if err != nil {
		return exitWith(ExitParseError, err)
	}

	for _, file := range files {
		cases, err := definition.LoadFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", file)
		for _, c := range cases {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", c.DisplayName())
			fmt.Fprintf(cmd.OutOrStdout(), "    %s %s\n", c.Request.Method, c.Request.URL)
			if len(c.Assertions) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    assertions: %d\n", len(c.Assertions))
			}
		}
	}

	return nil
}
