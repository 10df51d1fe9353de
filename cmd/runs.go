package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tripleyak/marginal-roas-optimizer/internal/export"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
	"github.com/tripleyak/marginal-roas-optimizer/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved optimization runs",
	Long:  "Commands for inspecting and summarizing runs recorded with --save or through the API.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		mode, _ := cmd.Flags().GetString("mode")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.RunFilter{Mode: model.RunMode(mode), Limit: limit, Offset: offset}
		switch filter.Mode {
		case "", model.RunModeSingle, model.RunModePortfolio:
		default:
			return eris.Errorf("runs list: mode must be single or portfolio, got %q", mode)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		format, _ := cmd.Flags().GetString("format")
		return showRun(os.Stdout, run, format)
	},
}

// -- runs delete --

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteRun(ctx, args[0]); err != nil {
			return eris.Wrap(err, "runs delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted run %s\n", args[0])
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		filter := store.RunFilter{Limit: 10000} // high limit for stats
		if since > 0 {
			filter.CreatedAfter = time.Now().Add(-since)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("mode", "", "filter by run mode (single, portfolio)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsStatsCmd.Flags().Duration("since", 7*24*time.Hour, "time window for stats (e.g. 24h, 168h; 0 = all)")

	runsShowCmd.Flags().String("format", "json", "json, or any output format to render the stored recommendation")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// showRun writes the whole run as JSON, or its recommendation in another format.
func showRun(out io.Writer, run *model.Run, format string) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	switch {
	case f == export.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case f.Binary():
		return eris.Errorf("runs show: %s output is not supported, use optimize --output", f)
	case run.Result != nil:
		return export.WriteResult(out, f, run.Result)
	default:
		return export.WritePortfolio(out, f, run.Rows)
	}
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total     int
	Single    int
	Portfolio int
	Feasible  int
	Paused    int
	// Portfolio entity outcomes.
	Entities     int
	Increase     int
	Decrease     int
	Pause        int
	Insufficient int
	NonPositive  int
	Errors       int
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	for _, r := range runs {
		switch r.Mode {
		case model.RunModeSingle:
			s.Single++
			if r.Result != nil && r.Result.Feasible {
				s.Feasible++
			} else {
				s.Paused++
			}
		case model.RunModePortfolio:
			s.Portfolio++
			for _, row := range r.Rows {
				s.Entities++
				switch row.Outcome {
				case model.OutcomeSuccess:
					switch row.Action {
					case model.ActionIncrease:
						s.Increase++
					case model.ActionDecrease:
						s.Decrease++
					default:
						s.Pause++
					}
				case model.OutcomeInsufficientData:
					s.Insufficient++
				case model.OutcomeNonPositiveMargin:
					s.NonPositive++
				default:
					s.Errors++
				}
			}
		}
	}
	return s
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Single:\t%d\n", s.Single)
	_, _ = fmt.Fprintf(w, "  Feasible:\t%d\n", s.Feasible)
	_, _ = fmt.Fprintf(w, "  Pause:\t%d\n", s.Paused)
	_, _ = fmt.Fprintf(w, "Portfolio:\t%d\n", s.Portfolio)
	if s.Entities > 0 {
		_, _ = fmt.Fprintf(w, "  Entities:\t%d\n", s.Entities)
		_, _ = fmt.Fprintf(w, "  Increase:\t%d\n", s.Increase)
		_, _ = fmt.Fprintf(w, "  Decrease:\t%d\n", s.Decrease)
		_, _ = fmt.Fprintf(w, "  Pause:\t%d\n", s.Pause)
		_, _ = fmt.Fprintf(w, "  Insufficient data:\t%d\n", s.Insufficient)
		_, _ = fmt.Fprintf(w, "  Non-positive margin:\t%d\n", s.NonPositive)
		_, _ = fmt.Fprintf(w, "  Errors:\t%d\n", s.Errors)
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODE\tSOURCE\tOBS\tMARGIN\tSUMMARY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t---\t------\t-------\t-------")

	for _, r := range runs {
		source := r.Source
		if len(source) > 30 {
			source = source[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s%%\t%s\t%s\n",
			truncateID(r.ID),
			r.Mode,
			source,
			r.Observations,
			export.Pct(r.Margin.ContributionMarginPct),
			runSummary(r),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// runSummary is a one-line outcome for list output.
func runSummary(r model.Run) string {
	if r.Result != nil {
		if !r.Result.Feasible {
			return "pause"
		}
		return "optimal " + export.Money(r.Result.OptimalSpend)
	}
	var ok int
	for _, row := range r.Rows {
		if row.Outcome == model.OutcomeSuccess {
			ok++
		}
	}
	return fmt.Sprintf("%d/%d optimized", ok, len(r.Rows))
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
