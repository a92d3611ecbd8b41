package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/langdetect/internal/history"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded training runs",
	Long: `List the training runs recorded by "langdetect train", newest first.
With a run id, show the results of every epoch of that run.

Examples:
  langdetect history
  langdetect history --limit 5
  langdetect history 01J9Z3K4X5ZC6N7M8P9Q0R1S2T`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("db", "", "training history database (default from training.history_db)")
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of runs to list (0 lists all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	path := stringFlag(cmd, "db", cfg.Training.HistoryDB)
	if path == "" {
		return fmt.Errorf("no history database configured (--db or training.history_db)")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("history database not found: %s", path)
	}

	store, err := history.Open(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if len(args) == 1 {
		return printEpochs(cmd, store, args[0])
	}
	limit, _ := cmd.Flags().GetInt("limit")
	return printRuns(cmd, store, limit)
}

func printRuns(cmd *cobra.Command, store *history.Store, limit int) error {
	runs, err := store.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No training runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tLANGUAGES\tTRAINING\tVALIDATION\tEPOCHS\tBEST\tMODEL")
	for _, r := range runs {
		best := "-"
		if r.BestAccuracy != nil && r.BestEpoch != nil {
			best = fmt.Sprintf("%.2f%% (epoch %d)", 100*(*r.BestAccuracy), *r.BestEpoch)
		}
		started := r.StartedAt.Local().Format(time.DateTime)
		if r.FinishedAt == nil {
			started += " (unfinished)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, started, strings.Join(r.Languages, ","), r.TrainingExamples, r.ValidationExamples,
			r.Epochs, best, r.ModelPath)
	}
	return tw.Flush()
}

func printEpochs(cmd *cobra.Command, store *history.Store, id string) error {
	epochs, err := store.Epochs(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(epochs) == 0 {
		return fmt.Errorf("no epochs recorded for run %s", id)
	}

	_, _ = fmt.Fprintf(out, "Run %s\n\n", id)
	writeEpochTable(out, epochs)
	return nil
}

func writeEpochTable(out io.Writer, epochs []history.EpochRecord) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "EPOCH\tEXAMPLES\tSKIPPED\tRELEVANT\tIGNORED\tUPDATES\tELAPSED\tACCURACY\tSAVED")
	for _, e := range epochs {
		accuracy := "-"
		if e.Accuracy != nil {
			accuracy = fmt.Sprintf("%.2f%%", 100*(*e.Accuracy))
		}
		saved := ""
		if e.Checkpoint {
			saved = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			e.Epoch, e.Examples, e.Skipped, e.RelevantTokens, e.IgnoredTokens, e.Updates,
			e.Elapsed.Round(time.Millisecond), accuracy, saved)
	}
	_ = tw.Flush()
}
