package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripleyak/marginal-roas-optimizer/internal/export"
	"github.com/tripleyak/marginal-roas-optimizer/internal/ingest"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

var (
	optimizeFlags  runFlags
	optimizeEntity string
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Recommend daily spend for one product",
	Long:  "Fits a response curve to one product's daily spend and ad revenue and reports the spend where marginal ROAS meets the required return.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("optimize"); err != nil {
			return err
		}
		return runOptimize(ctx, cmd, &optimizeFlags, optimizeEntity, os.Stdout)
	},
}

func runOptimize(ctx context.Context, cmd *cobra.Command, f *runFlags, entity string, out io.Writer) error {
	settings, err := f.settings(cmd)
	if err != nil {
		return err
	}
	margin := f.margin(cmd)

	obs, err := loadObservations(ctx, f.input, f.sheet)
	if err != nil {
		return err
	}
	if entity != "" {
		obs = filterEntity(obs, entity)
		if len(obs) == 0 {
			return eris.Errorf("no observations for entity %q", entity)
		}
	}
	obs = ingest.Aggregate(obs, false)

	res, err := newOptimizer(0).OptimizeSingle(ctx, obs, margin, settings)
	if err != nil {
		return eris.Wrap(err, "optimize")
	}

	if f.save {
		if err := saveRun(ctx, &model.Run{
			Mode:         model.RunModeSingle,
			Source:       sourceName(f.input),
			Observations: len(obs),
			Settings:     settings,
			Margin:       margin,
			Result:       res,
		}); err != nil {
			return err
		}
	}

	return writeOutput(out, f.format, f.output, func(w io.Writer, format export.Format) error {
		return export.WriteResult(w, format, res)
	})
}

func filterEntity(obs []model.Observation, id string) []model.Observation {
	var out []model.Observation
	for _, o := range obs {
		if o.GroupKey() == id {
			out = append(out, o)
		}
	}
	return out
}

// saveRun records run in the configured store.
func saveRun(ctx context.Context, run *model.Run) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.SaveRun(ctx, run); err != nil {
		return eris.Wrap(err, "save run")
	}
	zap.L().Info("run saved", zap.String("run_id", run.ID), zap.String("mode", string(run.Mode)))
	_, _ = fmt.Fprintf(os.Stderr, "Saved run %s\n", run.ID)
	return nil
}

func init() {
	optimizeFlags.register(optimizeCmd)
	optimizeFlags.registerCurrentSpend(optimizeCmd)
	optimizeCmd.Flags().StringVar(&optimizeEntity, "entity", "", "optimize only this entity from a multi-product file")
	rootCmd.AddCommand(optimizeCmd)
}
