package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/tripleyak/marginal-roas-optimizer/internal/curve"
	"github.com/tripleyak/marginal-roas-optimizer/internal/optimizer"
	"github.com/tripleyak/marginal-roas-optimizer/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "mroas.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore initializes and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func newOptimizer(workers int) *optimizer.Optimizer {
	if workers <= 0 {
		workers = cfg.Optimizer.Workers
	}
	return optimizer.New(optimizer.Options{
		Fit: curve.FitOptions{
			Budget:         cfg.Optimizer.FitBudget,
			MaxEvaluations: cfg.Optimizer.MaxEvaluations,
		},
		Workers: workers,
	})
}
