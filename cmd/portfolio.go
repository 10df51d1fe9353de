package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tripleyak/marginal-roas-optimizer/internal/export"
	"github.com/tripleyak/marginal-roas-optimizer/internal/ingest"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

var (
	portfolioFlags   runFlags
	portfolioWorkers int
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Recommend daily spend for every product in a file",
	Long:  "Groups observations by entity id and optimizes each product independently. Products with too little data or a non-positive margin are reported, not dropped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("portfolio"); err != nil {
			return err
		}
		return runPortfolio(ctx, cmd, &portfolioFlags, portfolioWorkers, os.Stdout)
	},
}

func runPortfolio(ctx context.Context, cmd *cobra.Command, f *runFlags, workers int, out io.Writer) error {
	settings, err := f.settings(cmd)
	if err != nil {
		return err
	}
	margin := f.margin(cmd)

	obs, err := loadObservations(ctx, f.input, f.sheet)
	if err != nil {
		return err
	}
	obs = ingest.Aggregate(obs, true)

	rows, err := newOptimizer(workers).OptimizePortfolio(ctx, obs, margin, settings)
	if err != nil {
		return err
	}
	summarizePortfolio(os.Stderr, rows)

	if f.save {
		if err := saveRun(ctx, &model.Run{
			Mode:         model.RunModePortfolio,
			Source:       sourceName(f.input),
			Observations: len(obs),
			Settings:     settings,
			Margin:       margin,
			Rows:         rows,
		}); err != nil {
			return err
		}
	}

	return writeOutput(out, f.format, f.output, func(w io.Writer, format export.Format) error {
		return export.WritePortfolio(w, format, rows)
	})
}

// summarizePortfolio prints outcome counts to w.
func summarizePortfolio(w io.Writer, rows []model.PortfolioRow) {
	counts := make(map[string]int)
	for _, r := range rows {
		if r.Outcome == model.OutcomeSuccess {
			counts[string(r.Action)]++
			continue
		}
		counts[string(r.Outcome)]++
	}
	_, _ = fmt.Fprintf(w, "%d entities: %d increase, %d decrease, %d pause, %d insufficient data, %d non-positive margin, %d errors\n",
		len(rows),
		counts[string(model.ActionIncrease)],
		counts[string(model.ActionDecrease)],
		counts[string(model.ActionPause)],
		counts[string(model.OutcomeInsufficientData)],
		counts[string(model.OutcomeNonPositiveMargin)],
		counts[string(model.OutcomeError)],
	)
}

func init() {
	portfolioFlags.register(portfolioCmd)
	portfolioCmd.Flags().IntVar(&portfolioWorkers, "workers", 0, "concurrent entities (default from config)")
	rootCmd.AddCommand(portfolioCmd)
}
