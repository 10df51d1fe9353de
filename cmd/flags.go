package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripleyak/marginal-roas-optimizer/internal/export"
	"github.com/tripleyak/marginal-roas-optimizer/internal/ingest"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

// runFlags are shared by optimize and portfolio. Unset flags fall back to config.
type runFlags struct {
	input  string
	sheet  string
	format string
	output string
	save   bool

	grossMargin  float64
	requiredNet  float64
	contribution float64
	currentSpend float64
	maxSpend     float64
	seasonality  string
	recency      float64
}

func (f *runFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "daily export to read (.csv, .tsv, .txt or .xlsx)")
	fl.StringVar(&f.sheet, "sheet", "", "xlsx worksheet name (default first sheet)")
	fl.StringVarP(&f.format, "format", "f", "table", "output format: table, json, yaml, csv or xlsx")
	fl.StringVarP(&f.output, "output", "o", "", "write output to file instead of stdout")
	fl.BoolVar(&f.save, "save", false, "record the run in the configured store")
	fl.Float64Var(&f.grossMargin, "gross-margin", 0, "gross margin percent (default from config)")
	fl.Float64Var(&f.requiredNet, "required-net", 0, "required net margin percent (default from config)")
	fl.Float64Var(&f.contribution, "contribution-margin", 0, "contribution margin as a fraction, e.g. 0.11; overrides gross/net")
	fl.Float64Var(&f.maxSpend, "max-spend", 0, "cap on the spend search range (0 = no cap)")
	fl.StringVar(&f.seasonality, "seasonality", "", "none, weekly or monthly (default from config)")
	fl.Float64Var(&f.recency, "recency", 0, "0..1 weight on recent days (default from config)")
	_ = cmd.MarkFlagRequired("input")
}

func (f *runFlags) registerCurrentSpend(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.currentSpend, "current-spend", 0, "current daily spend to compare against (0 = no comparison)")
}

// margin resolves the global margin from flags over config.
func (f *runFlags) margin(cmd *cobra.Command) model.MarginConfig {
	fl := cmd.Flags()
	if fl.Changed("contribution-margin") {
		return model.MarginFromFraction(f.contribution)
	}
	gross, net := cfg.Margin.GrossMarginPct, cfg.Margin.RequiredNetPct
	if fl.Changed("gross-margin") {
		gross = f.grossMargin
	}
	if fl.Changed("required-net") {
		net = f.requiredNet
	}
	return model.NewMarginConfig(gross, net)
}

// settings resolves run settings from flags over config.
func (f *runFlags) settings(cmd *cobra.Command) (model.RunSettings, error) {
	fl := cmd.Flags()

	season := cfg.Optimizer.Seasonality
	if fl.Changed("seasonality") {
		season = f.seasonality
	}
	mode, err := model.ParseSeasonality(season)
	if err != nil {
		return model.RunSettings{}, err
	}

	s := model.RunSettings{
		Seasonality: mode,
		Recency:     cfg.Optimizer.Recency,
		MaxSpend:    f.maxSpend,
	}
	if fl.Changed("recency") {
		s.Recency = f.recency
	}
	if s.Recency < 0 || s.Recency > 1 {
		return model.RunSettings{}, eris.Errorf("recency must be between 0 and 1, got %g", s.Recency)
	}
	if s.MaxSpend < 0 {
		return model.RunSettings{}, eris.New("max-spend must be >= 0")
	}
	if fl.Lookup("current-spend") != nil {
		if f.currentSpend < 0 {
			return model.RunSettings{}, eris.New("current-spend must be >= 0")
		}
		s.CurrentSpend = f.currentSpend
	}
	return s, nil
}

// loadObservations reads the input file.
func loadObservations(ctx context.Context, path, sheet string) ([]model.Observation, error) {
	obs, report, err := ingest.ReadFile(ctx, path, ingest.Options{Sheet: sheet})
	if err != nil {
		return nil, err
	}
	if report.Skipped > 0 {
		zap.L().Warn("skipped unparseable rows",
			zap.String("input", path),
			zap.Int("skipped", report.Skipped),
		)
	}
	return obs, nil
}

// writeOutput opens the output destination and hands it to write.
func writeOutput(stdout io.Writer, format, path string, write func(io.Writer, export.Format) error) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	if path == "" {
		if f.Binary() {
			return eris.Errorf("%s output requires --output", f)
		}
		return write(stdout, f)
	}

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(file, f); err != nil {
		file.Close() //nolint:errcheck
		return err
	}
	if err := file.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	_, _ = fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	return nil
}

// sourceName is the input file name recorded with saved runs.
func sourceName(path string) string {
	return strings.TrimSpace(filepath.Base(path))
}
