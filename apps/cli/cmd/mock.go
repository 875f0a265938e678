package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/jsonprobe/packages/mock"
	"github.com/spf13/cobra"
)

var (
	mockPortFlag    int
	mockDelayFlag   string
	mockTokenFlag   string
	mockVerboseFlag int
)

var mockCmd = &cobra.Command{
	Use:   "mock [file|directory...]",
	Short: "Start a mock server based on definition files",
	Long: `Start an HTTP mock server that answers the requests described in your
definition files.

The mock server:
- Registers one route per case (method, path and query params)
- Builds each JSON body from the case's exact and contains assertions
- Answers login cases with an access token
- Requires that token on routes whose headers use {{ACCESS_TOKEN}}
- Can add artificial delays to simulate network latency

Examples:
  jsonprobe mock
  jsonprobe mock ./tests/ --port 8000
  jsonprobe mock test_definitions.json --delay 100ms -v`,
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", getEnvInt("JSONPROBE_MOCK_PORT", mock.DefaultPort), "Port to run the mock server on (env: JSONPROBE_MOCK_PORT)")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().StringVar(&mockTokenFlag, "token", getEnvString("JSONPROBE_MOCK_TOKEN", mock.DefaultToken), "Access token issued by login routes (env: JSONPROBE_MOCK_TOKEN)")
	mockCmd.Flags().CountVarP(&mockVerboseFlag, "verbose", "v", "Log requests (-v) and routes (-vv)")
}

func mockCommand(cmd *cobra.Command, args []string) error {
	// Parse delay
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return exitWith(ExitUsageError, fmt.Errorf("invalid delay value %q: %w", mockDelayFlag, err))
		}
	}

	files, err := collectFiles(args, "")
	if err != nil {
		return exitWith(ExitParseError, err)
	}

	server := mock.NewServer(
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithToken(mockTokenFlag),
		mock.WithLogger(newLogger(cmd.ErrOrStderr(), mockVerboseFlag)),
	)

	if err := server.LoadFiles(files); err != nil {
		return exitWith(ExitParseError, fmt.Errorf("failed to load files: %w", err))
	}

	routes := server.Routes()
	if len(routes) == 0 {
		return exitWith(ExitParseError, fmt.Errorf("no routes found in the provided files"))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d routes from %d files\n", len(routes), len(files))
	fmt.Fprintf(cmd.OutOrStdout(), "Mock server listening on http://localhost:%d\n", mockPortFlag)
	fmt.Fprintf(cmd.OutOrStdout(), "Login routes issue the token %q\n", server.Token())

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.StartWithContext(ctx); err != nil {
		return exitWith(ExitNetworkError, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nMock server stopped")
	return nil
}
