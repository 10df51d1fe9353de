package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripleyak/marginal-roas-optimizer/internal/api"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
	"github.com/tripleyak/marginal-roas-optimizer/internal/store"
)

var (
	servePort    int
	serveNoStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the optimization API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		var st store.Store
		if !serveNoStore {
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		handler, err := buildAPI(st)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("store", st != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildAPI wires the HTTP handler from config.
func buildAPI(st store.Store) (http.Handler, error) {
	mode, err := model.ParseSeasonality(cfg.Optimizer.Seasonality)
	if err != nil {
		return nil, err
	}
	srv := api.New(newOptimizer(0), st, api.Options{
		RateLimit:   cfg.Server.RateLimit,
		Burst:       cfg.Server.Burst,
		CORSOrigins: cfg.Server.CORSOrigins,
		Margin:      cfg.GlobalMargin(),
		Settings: model.RunSettings{
			Seasonality: mode,
			Recency:     cfg.Optimizer.Recency,
		},
	})
	return srv.Handler(), nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "do not persist runs or mount /v1/runs")
	rootCmd.AddCommand(serveCmd)
}
