package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripleyak/marginal-roas-optimizer/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mroas",
	Short: "Marginal ROAS ad spend optimizer",
	Long:  "Fits a diminishing-returns curve to daily spend and revenue, then recommends the spend where the next dollar stops paying for itself.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
