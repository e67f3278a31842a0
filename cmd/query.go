package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/review-scout/internal/model"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List reviews eligible for the next shortlist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := newSession(ctx, false, false)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		reviews, err := s.Candidates(ctx, limit)
		if err != nil {
			return err
		}
		formatCandidates(cmd.OutOrStdout(), reviews)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent ingest counters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.ListStats(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		formatStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the run log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		formatRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		lock, err := acquireLock(cfg.App.DataDir)
		if err != nil {
			return err
		}
		defer lock.Unlock() //nolint:errcheck

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s).\n", cfg.Store.Driver)
		return nil
	},
}

func formatCandidates(w io.Writer, reviews []model.Review) {
	if len(reviews) == 0 {
		fmt.Fprintln(w, "No candidates.")
		return
	}

	rows := make([][]string, 0, len(reviews))
	for _, r := range reviews {
		rows = append(rows, []string{
			r.ReviewID,
			strconv.Itoa(r.HumorScore),
			strconv.Itoa(r.Rating),
			r.Theme(),
			string(r.SafetyLabel),
			string(r.Status),
			truncate(r.Text, 50),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Review", "Score", "Stars", "Theme", "Safety", "Status", "Text"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}

func formatStats(w io.Writer, stats []model.IngestStat) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No ingest stats recorded.")
		return
	}

	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.CreatedAt.Local().Format(time.DateTime),
			s.Event,
			strconv.Itoa(s.Count),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"When", "Event", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	))
}

func formatRuns(w io.Writer, runs []model.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		detail := formatCounts(r.Stats)
		if r.Status == model.RunStatusFailed {
			detail = truncate(r.Error, 60)
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			r.Command,
			string(r.Status),
			dur,
			detail,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Started", "Command", "Status", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func init() {
	candidatesCmd.Flags().Int("limit", 50, "maximum number of candidates to list (0 = all)")
	statsCmd.Flags().Int("limit", 20, "maximum number of events to show")
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to show")

	rootCmd.AddCommand(candidatesCmd, statsCmd, runsCmd, migrateCmd)
}
