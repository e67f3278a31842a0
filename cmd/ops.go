package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/review-scout/internal/model"
	"github.com/sells-group/review-scout/internal/pipeline"
)

// withPipeline holds the run lock, builds a pipeline and exports metrics
// once fn returns.
func withPipeline(ctx context.Context, needSerp, needScoring bool, fn func(p *pipeline.Pipeline) error) error {
	lock, err := acquireLock(cfg.App.DataDir)
	if err != nil {
		return err
	}
	defer lock.Unlock() //nolint:errcheck

	s, err := newSession(ctx, needSerp, needScoring)
	if err != nil {
		return err
	}

	runErr := fn(s.Pipeline)
	if err := s.Close(); err != nil {
		zap.L().Warn("close store failed", zap.Error(err))
	}
	if err := s.Metrics().WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		zap.L().Warn("metrics textfile export failed", zap.Error(err))
	}
	return runErr
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find venues for every configured region and category",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd.Context(), true, false, func(p *pipeline.Pipeline) error {
			n, err := p.Discover(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Discovered %d places.\n", n)
			return nil
		})
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Harvest, score and store low-star reviews of known venues",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd.Context(), true, true, func(p *pipeline.Pipeline) error {
			n, err := p.Collect(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d reviews.\n", n)
			return nil
		})
	},
}

var shortlistCmd = &cobra.Command{
	Use:   "shortlist",
	Short: "Select this week's reviews and write the reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		shots, _ := cmd.Flags().GetString("screenshot-dir")

		return withPipeline(cmd.Context(), false, false, func(p *pipeline.Pipeline) error {
			res, err := p.Shortlist(cmd.Context(), pipeline.ShortlistOptions{DryRun: dryRun, ScreenshotDir: shots})
			if err != nil {
				return err
			}
			formatShortlist(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Run discover, collect and shortlist in sequence",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd.Context(), true, true, func(p *pipeline.Pipeline) error {
			res, err := p.Weekly(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Discovered %d places, stored %d reviews.\n", res.Discovered, res.Collected)
			formatShortlist(cmd.OutOrStdout(), res.Shortlist)
			return nil
		})
	},
}

var addPlaceCmd = &cobra.Command{
	Use:   "add-place <place-id>",
	Short: "Register a venue by its provider id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), false, false, func(p *pipeline.Pipeline) error {
			if err := p.AddPlace(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added place %s.\n", args[0])
			return nil
		})
	},
}

var setStatusCmd = &cobra.Command{
	Use:   "set-status <review-id> <status>",
	Short: "Move a review through its lifecycle (new, selected, used, discarded)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := model.ParseReviewStatus(args[1])
		if err != nil {
			return err
		}
		return withPipeline(cmd.Context(), false, false, func(p *pipeline.Pipeline) error {
			if err := p.SetStatus(cmd.Context(), args[0], status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Review %s is now %s.\n", args[0], status)
			return nil
		})
	},
}

func formatShortlist(w io.Writer, res *pipeline.ShortlistResult) {
	if res == nil {
		return
	}
	if len(res.Selected) == 0 {
		fmt.Fprintf(w, "No reviews selected for %s (%d candidates).\n", res.BatchDate, res.Candidates)
		return
	}

	rows := make([][]string, 0, len(res.Selected))
	for _, r := range res.Selected {
		rows = append(rows, []string{
			r.ReviewID,
			strconv.Itoa(r.HumorScore),
			r.Theme(),
			string(r.SafetyLabel),
			truncate(r.Text, 60),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Review", "Score", "Theme", "Safety", "Text"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))

	fmt.Fprintf(w, "Selected %d of %d candidates for %s", len(res.Selected), res.Candidates, res.BatchDate)
	if res.DryRun {
		fmt.Fprint(w, " (dry run, store unchanged)")
	}
	fmt.Fprintln(w)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped: %s\n", formatCounts(res.Skipped))
	}
	for _, path := range res.Paths {
		fmt.Fprintf(w, "  wrote %s\n", path)
	}
}

// formatCounts renders counts as "k=v" pairs in key order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += k + "=" + strconv.Itoa(counts[k])
	}
	return out
}

// truncate collapses whitespace and cuts s to n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	shortlistCmd.Flags().Bool("dry-run", false, "select and export without marking reviews as shortlisted")
	shortlistCmd.Flags().String("screenshot-dir", "", "directory of pre-captured review screenshots to embed in the HTML report")

	rootCmd.AddCommand(discoverCmd, collectCmd, shortlistCmd, weeklyCmd, addPlaceCmd, setStatusCmd)
}
