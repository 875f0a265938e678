package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/config"
	"github.com/abdul-hamid-achik/jsonprobe/packages/history"
	"github.com/spf13/cobra"
)

var (
	historyLimitFlag int
	historyRunFlag   string
	historyDBPath    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded test runs",
	Long: `Show the runs recorded by 'jsonprobe run', newest first, or the case
outcomes of a single run.

Examples:
  jsonprobe history
  jsonprobe history --limit 50
  jsonprobe history --run 3f1c2a9e-...`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "Show the cases of one run")
	historyCmd.Flags().StringVar(&historyDBPath, "history-db", getEnvString("JSONPROBE_HISTORY_DB", ""), "Run history database (default .jsonprobe/history.db) (env: JSONPROBE_HISTORY_DB)")
}

// historyPath picks the database from the flag, then the config file.
func historyPath() string {
	if historyDBPath != "" {
		return historyDBPath
	}
	if cfg, err := config.LoadConfig(""); err == nil && cfg.HistoryDB != "" {
		return cfg.HistoryDB
	}
	return history.DefaultPath
}

func historyCommand(cmd *cobra.Command, args []string) error {
	store, err := history.Open(historyPath())
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	defer store.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if historyRunFlag != "" {
		records, err := store.Cases(commandContext(cmd), historyRunFlag)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no cases recorded for run %s", historyRunFlag)
		}
		fmt.Fprintln(w, "#\tSTATUS\tDURATION\tNAME\tMESSAGE")
		for _, r := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.Position+1, r.Status, r.Duration, r.Name, r.Message)
		}
		return nil
	}

	runs, err := store.Recent(commandContext(cmd), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	fmt.Fprintln(w, "ID\tSTARTED\tSOURCE\tPASSED\tFAILED\tSKIPPED\tDURATION\tP95")
	for _, r := range runs {
		p95 := "-"
		if r.P95 > 0 {
			p95 = r.P95.Round(time.Microsecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Source,
			r.Passed, r.Failed, r.Skipped, r.Duration, p95)
	}
	return nil
}
