package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/config"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/env"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a new jsonprobe project",
	Long: `Initialize a new jsonprobe project in the current directory.

This creates:
  - jsonprobe.yaml          - Configuration file
  - test_definitions.json   - Example test cases
  - .env.example            - Login variables for authenticated tests

Examples:
  jsonprobe init
  jsonprobe init ./api-tests --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleDefinitions = `[
  {
    "name": "login",
    "request": {
      "method": "POST",
      "url": "/auth/login",
      "payload": {"username": "demo", "password": "demo"}
    },
    "assertions": {
      "user.username": {"validator": "exact", "expected": "demo"}
    }
  },
  {
    "name": "get current user",
    "request": {
      "method": "GET",
      "url": "/users/me",
      "headers": {"Authorization": "Bearer {{ACCESS_TOKEN}}"}
    },
    "assertions": {
      "name": {"validator": "exact", "expected": "Ada"},
      "roles.0": {"validator": "exact", "expected": "admin"}
    }
  },
  {
    "name": "search users",
    "request": {
      "method": "GET",
      "url": "/users",
      "params": {"q": "ada", "limit": 10}
    },
    "assertions": {
      "results.0.email": {"validator": "contains", "expected": "@example.com"}
    }
  }
]
`

func exampleEnv() string {
	return fmt.Sprintf(`# Direct login. When %s is unset the first case whose URL
# looks like a login endpoint is used to obtain the token instead.
%s=http://localhost:3000/auth/login
%s=demo
%s=demo
`, env.LoginURLVar, env.LoginURLVar, env.LoginUsernameVar, env.LoginPasswordVar)
}

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	configFile := filepath.Join(dir, "jsonprobe.yaml")
	definitionsFile := filepath.Join(dir, definition.DefaultFile)
	envFile := filepath.Join(dir, ".env.example")

	if !forceInit {
		for _, f := range []string{configFile, definitionsFile, envFile} {
			if _, err := os.Stat(f); err == nil {
				return exitWith(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://localhost:3000"
	cfg.Headers = map[string]string{
		"User-Agent": "jsonprobe/" + version,
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(definitionsFile, []byte(exampleDefinitions), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", definitionsFile)

	if err := os.WriteFile(envFile, []byte(exampleEnv()), 0644); err != nil {
		return fmt.Errorf("failed to create env example: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", envFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\njsonprobe project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'jsonprobe mock' in one terminal and 'jsonprobe run' in another to try the examples.\n")

	return nil
}
