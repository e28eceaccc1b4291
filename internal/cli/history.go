package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"exam-simulator/internal/config"
	"exam-simulator/internal/domain"
	"exam-simulator/internal/infra/sqlite"
	"exam-simulator/internal/timer"
)

// NewHistoryCmd lists past terminal exams from the local database.
func NewHistoryCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent exam results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.Exam.HistoryLimit
			}
			store, err := sqlite.Open(cfg.SQLite.Path, cfg.Exam.HistoryLimit)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "records to show (defaults to exam.historyLimit)")
	return cmd
}

func printHistory(out io.Writer, records []domain.HistoryRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "no exams taken yet")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tSCORE\tRESULT\tTIME\tSESSION")
	for _, r := range records {
		verdict := "fail"
		if r.Passed {
			verdict = "pass"
		}
		fmt.Fprintf(w, "%s\t%d/%d (%d%%)\t%s\t%s\t%s\n",
			r.FinishedAt.Local().Format("2006-01-02 15:04"), r.Correct, r.Total, r.Percentage, verdict,
			timer.Format(r.TimeUsedSeconds), r.SessionID)
	}
	return w.Flush()
}
