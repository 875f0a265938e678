package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/jsonprobe/packages/auth"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/config"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/definition"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/env"
	"github.com/abdul-hamid-achik/jsonprobe/packages/core/runner"
	"github.com/abdul-hamid-achik/jsonprobe/packages/history"
	jphttp "github.com/abdul-hamid-achik/jsonprobe/packages/http"
	"github.com/abdul-hamid-achik/jsonprobe/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory...]",
	Short: "Run API tests from JSON definition files",
	Long: `Run the test cases defined in test_definition*.json files.

Without arguments the definitions directory (default ".") is searched.
Cases run in file order, then in order within each file.

Examples:
  jsonprobe run
  jsonprobe run ./tests/ --base-url http://localhost:8000
  jsonprobe run test_definitions_users.json --name "create*"
  jsonprobe run --output junit --output-file report.xml
  jsonprobe run --watch`,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	dirFlag        string
	envFileFlag    string
	configFlag     string
	baseURLFlag    string
	headerFlags    []string
	nameFlag       string
	verboseFlag    int // 0=warnings, 1=-v, 2=-vv
	bailFlag       bool
	retriesFlag    int
	backoffFlag    float64
	timeoutFlag    string
	rateFlag       float64
	noColorFlag    bool
	outputFlag     string
	outputFileFlag string
	watchFlag      bool
	proxyFlag      string
	insecureFlag   bool
	historyDBFlag  string
	noHistoryFlag  bool
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&dirFlag, "dir", "d", getEnvString("JSONPROBE_DIR", ""), "Directory containing test definition files (env: JSONPROBE_DIR)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("JSONPROBE_ENV_FILE", ""), "Path to .env file providing LOGIN_* variables (env: JSONPROBE_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("JSONPROBE_CONFIG", ""), "Path to config file (env: JSONPROBE_CONFIG)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only tests matching name pattern")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("JSONPROBE_NO_COLOR", false), "Disable colored output (env: JSONPROBE_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("JSONPROBE_OUTPUT", ""), "Output format: console, json, junit, tap (env: JSONPROBE_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("JSONPROBE_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: JSONPROBE_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("JSONPROBE_BAIL", false), "Stop on first failure (env: JSONPROBE_BAIL)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch definition files for changes and re-run tests")

	// Request flags
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("JSONPROBE_BASE_URL", ""), "Base URL for relative endpoints (env: JSONPROBE_BASE_URL)")
	runCmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Default header sent with every request, as \"Name: value\" (repeatable)")
	runCmd.Flags().IntVar(&retriesFlag, "retries", getEnvInt("JSONPROBE_RETRIES", -1), "Retries after a failed attempt (default 2) (env: JSONPROBE_RETRIES)")
	runCmd.Flags().Float64Var(&backoffFlag, "backoff", getEnvFloat("JSONPROBE_BACKOFF", -1), "Backoff factor in seconds (default 0.5) (env: JSONPROBE_BACKOFF)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("JSONPROBE_TIMEOUT", ""), "Request timeout (e.g., 15s, 1m) (env: JSONPROBE_TIMEOUT)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("JSONPROBE_RATE", 0), "Maximum requests per second, 0 for unlimited (env: JSONPROBE_RATE)")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("JSONPROBE_PROXY", ""), "Proxy URL for HTTP requests (env: JSONPROBE_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("JSONPROBE_INSECURE", false), "Disable SSL certificate validation (env: JSONPROBE_INSECURE)")

	// History flags
	runCmd.Flags().StringVar(&historyDBFlag, "history-db", getEnvString("JSONPROBE_HISTORY_DB", ""), "Run history database (default .jsonprobe/history.db) (env: JSONPROBE_HISTORY_DB)")
	runCmd.Flags().BoolVar(&noHistoryFlag, "no-history", getEnvBool("JSONPROBE_NO_HISTORY", false), "Do not record this run (env: JSONPROBE_NO_HISTORY)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// newFormatter creates the formatter for an output format name.
func newFormatter(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w)), nil
	case "tap":
		return output.NewTAPFormatter(output.TAPWithWriter(w)), nil
	case "", "console":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(noColor),
		), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use console, json, junit or tap)", format)
	}
}

// runFlagOverrides collects the run flags that were given, on the command
// line or through JSONPROBE_* variables, as a config to merge over the file.
func runFlagOverrides() (*config.Config, error) {
	o := &config.Config{
		BaseURL:        baseURLFlag,
		Proxy:          proxyFlag,
		DefinitionsDir: dirFlag,
		EnvFile:        envFileFlag,
		HistoryDB:      historyDBFlag,
		RateLimit:      rateFlag,
	}

	if outputFlag != "" {
		o.Reporters = []string{outputFlag}
	}
	if retriesFlag >= 0 {
		o.MaxRetries = config.IntPtr(retriesFlag)
	}
	if backoffFlag >= 0 {
		o.BackoffFactor = config.Float64Ptr(backoffFlag)
	}
	if timeoutFlag != "" {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 15s, 1m, 500ms)", timeoutFlag, err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("invalid timeout value %q: must be positive", timeoutFlag)
		}
		o.Timeout = int(timeout.Milliseconds())
	}
	if insecureFlag {
		o.ValidateSSL = config.BoolPtr(false)
	}
	if bailFlag {
		o.Bail = config.BoolPtr(true)
	}
	if noColorFlag {
		o.NoColor = config.BoolPtr(true)
	}

	headers, err := parseHeaders(headerFlags)
	if err != nil {
		return nil, err
	}
	o.Headers = headers

	return o, nil
}

// parseHeaders turns "Name: value" arguments into a header map.
func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (expected \"Name: value\")", v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// newClient builds the HTTP client for a resolved configuration.
func newClient(cfg *config.Config, logger *slog.Logger) *jphttp.Client {
	opts := []jphttp.ClientOption{
		jphttp.WithBaseURL(cfg.BaseURL),
		jphttp.WithDefaultHeaders(cfg.Headers),
		jphttp.WithMaxRetries(cfg.GetMaxRetries()),
		jphttp.WithBackoffFactor(cfg.GetBackoffFactor()),
		jphttp.WithTimeout(cfg.GetTimeout()),
		jphttp.WithValidateSSL(cfg.GetValidateSSL()),
		jphttp.WithRateLimit(cfg.RateLimit),
		jphttp.WithLogger(logger),
	}
	if cfg.Proxy != "" {
		opts = append(opts, jphttp.WithProxy(cfg.Proxy))
	}
	return jphttp.NewClient(opts...)
}

// newLoginClient builds the client for direct login. It never retries and
// shares the run's TLS and proxy settings.
func newLoginClient(cfg *config.Config, logger *slog.Logger) *jphttp.Client {
	opts := []jphttp.ClientOption{
		jphttp.WithMaxRetries(0),
		jphttp.WithTimeout(auth.DirectLoginTimeout),
		jphttp.WithValidateSSL(cfg.GetValidateSSL()),
		jphttp.WithLogger(logger),
	}
	if cfg.Proxy != "" {
		opts = append(opts, jphttp.WithProxy(cfg.Proxy))
	}
	return jphttp.NewClient(opts...)
}

// authExitCode maps a session resolution failure to an exit code.
func authExitCode(err error) int {
	var missing *env.MissingConfigError
	if errors.As(err, &missing) || errors.Is(err, auth.ErrNoLoginSource) {
		return ExitConfigError
	}
	return ExitNetworkError
}

// runSession holds everything one execution of the definitions needs, so
// watch mode can repeat it.
type runSession struct {
	cfg        *config.Config
	args       []string
	format     string
	verbose    bool
	out        io.Writer
	outputFile string // truncated and rewritten on every execution; empty writes to out
	errOut     io.Writer
	logger     *slog.Logger
	lookup     env.LookupFunc
	history    string // empty disables recording
}

func runCommand(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr(), verboseFlag)

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("cannot load config: %w", err))
	}
	if fileConfig.IsDefault() {
		logger.Debug("no configuration found, using defaults")
	}
	overrides, err := runFlagOverrides()
	if err != nil {
		return exitWith(ExitUsageError, err)
	}
	cfg := fileConfig.Merge(overrides)

	lookup, found, err := env.DotEnvLookup(cfg.EnvFile)
	if err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("cannot read env file %s: %w", cfg.EnvFile, err))
	}
	if found {
		logger.Debug("loaded env file", "file", cfg.EnvFile)
	}

	format := config.DefaultReporter
	if len(cfg.Reporters) > 0 {
		format = cfg.Reporters[0]
	}

	s := &runSession{
		cfg:        cfg,
		args:       args,
		format:     format,
		verbose:    verboseFlag > 0,
		out:        cmd.OutOrStdout(),
		outputFile: outputFileFlag,
		errOut:     cmd.ErrOrStderr(),
		logger:     logger,
		lookup:     lookup,
	}
	if !noHistoryFlag {
		s.history = cfg.HistoryDB
		if s.history == "" {
			s.history = history.DefaultPath
		}
	}

	// Fail on a bad format before any request goes out
	if _, err := newFormatter(format, io.Discard, false, true); err != nil {
		return exitWith(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := s.execute(ctx)

	if !watchFlag {
		if err != nil {
			return err
		}
		if !result.Success() {
			return exitWith(ExitTestFailure, nil)
		}
		return nil
	}

	var exitErr *ExitError
	if err != nil && (!errors.As(err, &exitErr) || exitErr.Err != nil) {
		warnf(s.errOut, "%v", err)
	}
	return s.watch(ctx, cmd.OutOrStdout())
}

// execute loads the definitions, resolves the session, runs every case and
// reports the result.
func (s *runSession) execute(ctx context.Context) (*runner.RunResult, error) {
	out := s.out
	if s.outputFile != "" {
		f, err := os.Create(s.outputFile)
		if err != nil {
			return nil, exitWith(ExitUsageError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	formatter, err := newFormatter(s.format, out, s.verbose, s.cfg.GetNoColor())
	if err != nil {
		return nil, exitWith(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	// Only the console formatter prints errors; the others report per case
	fail := func(code int, err error) error {
		if _, ok := formatter.(*output.ConsoleFormatter); ok {
			formatter.FormatError(err)
			return exitWith(code, nil)
		}
		return exitWith(code, err)
	}

	files, err := collectFiles(s.args, s.cfg.DefinitionsDir)
	if err != nil {
		return nil, fail(ExitParseError, err)
	}
	cases, err := definition.LoadFiles(files)
	if err != nil {
		return nil, fail(ExitParseError, err)
	}
	s.logger.Info("loaded test definitions", "files", len(files), "cases", len(cases))

	client := newClient(s.cfg, s.logger)
	s.logger.Debug("http client ready", "base_url", client.BaseURL(), "default_headers", len(client.DefaultHeaders()))
	resolver := auth.NewResolver(client,
		auth.WithLoginClient(newLoginClient(s.cfg, s.logger)),
		auth.WithLookup(s.lookup),
		auth.WithLogger(s.logger),
	)
	session, err := resolver.Resolve(ctx, cases)
	if err != nil {
		return nil, fail(authExitCode(err), fmt.Errorf("authentication failed: %w", err))
	}

	r := runner.NewRunner(client, &runner.Config{
		NameFilter: nameFlag,
		Bail:       s.cfg.GetBail(),
	}, runner.WithSession(session), runner.WithLogger(s.logger))

	result := r.Run(ctx, cases)
	formatter.FormatResult(result)

	// Flush output for formatters that accumulate results
	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(result.Duration); err != nil {
			return result, exitWith(ExitUsageError, fmt.Errorf("error writing output: %w", err))
		}
	}

	s.record(context.WithoutCancel(ctx), result)
	return result, nil
}

// record stores the run in the history database. Failures only warn.
func (s *runSession) record(ctx context.Context, result *runner.RunResult) {
	if s.history == "" {
		return
	}
	store, err := history.Open(s.history)
	if err != nil {
		warnf(s.errOut, "run history disabled: %v", err)
		return
	}
	defer store.Close()

	if err := store.Record(ctx, s.source(), result); err != nil {
		warnf(s.errOut, "failed to record run: %v", err)
	}
}

// source describes where the definitions came from, for history entries.
func (s *runSession) source() string {
	if len(s.args) > 0 {
		return strings.Join(s.args, ",")
	}
	if s.cfg.DefinitionsDir != "" {
		return s.cfg.DefinitionsDir
	}
	return config.DefaultDefinitionsDir
}

// watch re-runs the definitions whenever one of them is written, until ctx
// is cancelled.
func (s *runSession) watch(ctx context.Context, status io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range watchDirs(s.args, s.cfg.DefinitionsDir) {
		if err := watcher.Add(dir); err != nil {
			warnf(s.errOut, "failed to watch %s: %v", dir, err)
		}
	}

	fmt.Fprintf(status, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	debounce := time.NewTimer(WatchDebounceDelay)
	debounce.Stop()
	var changed string

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && isDefinitionFile(event.Name) {
				changed = event.Name
				debounce.Reset(WatchDebounceDelay)
			}

		case <-debounce.C:
			fmt.Fprintf(status, "\n\nFile changed: %s\nRe-running tests...\n\n", changed)
			if _, err := s.execute(ctx); err != nil {
				var exitErr *ExitError
				if !errors.As(err, &exitErr) || exitErr.Err != nil {
					warnf(s.errOut, "%v", err)
				}
			}
			fmt.Fprintf(status, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			warnf(s.errOut, "watcher error: %v", err)
		}
	}
}

// collectFiles resolves the run arguments to definition files. Directories
// are searched with definition.Discover; files are taken as given. Without
// arguments dir is searched.
func collectFiles(args []string, dir string) ([]string, error) {
	if len(args) == 0 {
		if dir == "" {
			dir = config.DefaultDefinitionsDir
		}
		args = []string{dir}
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		found, err := definition.Discover(arg)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%w in %s (expected %s or %s)",
				definition.ErrNoDefinitions, arg, definition.FilePattern, definition.DefaultFile)
		}
		files = append(files, found...)
	}

	return files, nil
}

// watchDirs returns the directories holding the run's definitions.
func watchDirs(args []string, dir string) []string {
	if len(args) == 0 {
		if dir == "" {
			dir = config.DefaultDefinitionsDir
		}
		args = []string{dir}
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, arg := range args {
		d := arg
		if info, err := os.Stat(arg); err != nil || !info.IsDir() {
			d = filepath.Dir(arg)
		}
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func isDefinitionFile(path string) bool {
	base := filepath.Base(path)
	if base == definition.DefaultFile {
		return true
	}
	ok, _ := filepath.Match(definition.FilePattern, base)
	return ok
}
