package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|directory...]",
	Short: "Validate definition files without running them",
	Long: `Check that definition files are JSON lists of well-formed test cases
without sending any request.

Examples:
  jsonprobe validate
  jsonprobe validate test_definitions.json
  jsonprobe validate ./tests/`,
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, "")
	if err != nil {
		return exitWith(ExitParseError, err)
	}

	hasErrors := false
	for _, file := range files {
		cases, err := definition.LoadFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d cases)\n", file, len(cases))
		}
	}

	if hasErrors {
		return exitWith(ExitParseError, fmt.Errorf("validation failed"))
	}

	return nil
}
