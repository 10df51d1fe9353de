package optimizer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tripleyak/marginal-roas-optimizer/internal/curve"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

// group is one entity's observations in discovery order.
type group struct {
	id  string
	obs []model.Observation
}

// groupByEntity splits obs by entity id, preserving the order in which each
// entity first appears. Groups are keyed on the raw id, so blank ids never
// merge with an entity literally named UnassignedEntity; the label is only
// applied for display.
func groupByEntity(obs []model.Observation) []group {
	index := make(map[string]int)
	var groups []group
	for _, o := range obs {
		i, ok := index[o.EntityID]
		if !ok {
			i = len(groups)
			index[o.EntityID] = i
			groups = append(groups, group{id: o.GroupKey()})
		}
		groups[i].obs = append(groups[i].obs, o)
	}
	return groups
}

// OptimizePortfolio optimizes every entity in obs independently and returns
// one row per entity in discovery order. Per-entity failures, including
// panics, become error rows. The only batch-level error is context
// cancellation, in which case unfinished entities carry it as their row error.
func (o *Optimizer) OptimizePortfolio(ctx context.Context, obs []model.Observation, margin model.MarginConfig, settings model.RunSettings) ([]model.PortfolioRow, error) {
	groups := groupByEntity(obs)
	rows := make([]model.PortfolioRow, len(groups))
	if len(groups) == 0 {
		return rows, nil
	}

	zap.L().Info("optimizer: processing portfolio",
		zap.Int("entities", len(groups)),
		zap.Int("observations", len(obs)),
		zap.Int("concurrency", o.opts.Workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	var succeeded, skipped, failed atomic.Int64

	for i, grp := range groups {
		g.Go(func() error {
			row := o.optimizeEntity(gctx, grp, margin, settings)
			rows[i] = row

			log := zap.L().With(zap.String("entity", grp.id))
			switch row.Outcome {
			case model.OutcomeSuccess:
				succeeded.Add(1)
				log.Debug("entity optimized",
					zap.String("action", string(row.Action)),
					zap.Float64("optimal_spend", row.OptimalSpend),
				)
			case model.OutcomeError:
				failed.Add(1)
				log.Warn("entity optimization failed", zap.String("error", row.Error))
			default:
				skipped.Add(1)
				log.Debug("entity skipped", zap.String("outcome", string(row.Outcome)))
			}
			return nil // don't abort batch on individual failure
		})
	}

	if err := g.Wait(); err != nil {
		return rows, eris.Wrap(err, "optimizer: portfolio")
	}

	zap.L().Info("optimizer: portfolio complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("skipped", skipped.Load()),
		zap.Int64("failed", failed.Load()),
	)

	if err := ctx.Err(); err != nil {
		return rows, err
	}
	return rows, nil
}

// ResolveMargin returns the entity-level margin when the earliest observation
// carries both gross margin and required net, otherwise the global margin.
func ResolveMargin(sorted []model.Observation, global model.MarginConfig) model.MarginConfig {
	if len(sorted) > 0 && sorted[0].HasMargin() {
		return model.NewMarginConfig(*sorted[0].GrossMarginPct, *sorted[0].RequiredNetPct)
	}
	return global
}

// OrganicSharePct is the share of total revenue not attributed to ads, over
// the observations that report total revenue. It is nil when none do or the
// total is zero.
func OrganicSharePct(obs []model.Observation) *float64 {
	var total, ad float64
	var n int
	for _, o := range obs {
		if o.TotalRevenue == nil {
			continue
		}
		n++
		total += *o.TotalRevenue
		ad += o.AdRevenue
	}
	if n == 0 || total == 0 {
		return nil
	}
	return model.Float((total - ad) / total * 100)
}

func (o *Optimizer) optimizeEntity(ctx context.Context, grp group, global model.MarginConfig, settings model.RunSettings) (row model.PortfolioRow) {
	row = model.PortfolioRow{EntityID: grp.id, Observations: len(grp.obs)}

	defer func() {
		if r := recover(); r != nil {
			row = errorRow(grp, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return errorRow(grp, err.Error())
	}

	if len(grp.obs) < MinObservations {
		row.Outcome = model.OutcomeInsufficientData
		return row
	}

	sorted := model.SortByDate(grp.obs)
	margin := ResolveMargin(sorted, global)
	row.ContributionMarginPct = margin.ContributionMarginPct
	if !margin.Optimizable() {
		row.Outcome = model.OutcomeNonPositiveMargin
		return row
	}

	latestSpend := sorted[len(sorted)-1].Spend
	entitySettings := settings
	entitySettings.CurrentSpend = latestSpend

	res, err := o.OptimizeSingle(ctx, sorted, margin, entitySettings)
	if err != nil {
		return errorRow(grp, err.Error())
	}

	// Lift is reported against an unweighted fit so it does not depend on
	// the recency setting.
	s, err := prepare(sorted, settings.Seasonality)
	if err != nil {
		return errorRow(grp, err.Error())
	}
	baseline, err := curve.Fit(s.spend, s.adj.Revenue, nil, o.opts.Fit)
	if err != nil {
		return errorRow(grp, eris.Wrap(err, "optimizer: baseline fit").Error())
	}
	currentRevenue := curve.Value(latestSpend, baseline.Params) * s.adj.CurrentFactor

	row.Outcome = model.OutcomeSuccess
	row.Feasible = res.Feasible
	row.Action = model.ClassifyAction(res.Feasible, res.OptimalSpend, latestSpend)
	row.CurrentSpend = latestSpend
	row.CurrentRevenue = currentRevenue
	row.OptimalSpend = res.OptimalSpend
	row.ExpectedRevenue = res.ExpectedRevenue
	row.DeltaSpend = res.OptimalSpend - latestSpend
	row.RevenueLift = res.ExpectedRevenue - currentRevenue
	row.MarginalReturn = res.MarginalReturnAtOptimal
	row.TotalReturn = res.TotalReturnAtOptimal
	row.OrganicSharePct = OrganicSharePct(sorted)
	row.Result = res
	return row
}

func errorRow(grp group, msg string) model.PortfolioRow {
	return model.PortfolioRow{
		EntityID:     grp.id,
		Outcome:      model.OutcomeError,
		Error:        msg,
		Observations: len(grp.obs),
	}
}
