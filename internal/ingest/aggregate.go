package ingest

import "github.com/tripleyak/marginal-roas-optimizer/internal/model"

type aggKey struct {
	entity string
	day    string
}

// Aggregate sums observations sharing a key: (entity, date) when byEntity,
// otherwise date alone. Spend, ad revenue and total revenue are summed (a nil
// total plus a value is that value). The first non-nil margin fields are kept.
// Output preserves first-appearance order.
func Aggregate(obs []model.Observation, byEntity bool) []model.Observation {
	index := make(map[aggKey]int, len(obs))
	out := make([]model.Observation, 0, len(obs))

	for _, o := range obs {
		key := aggKey{day: o.Date.Format(model.DateLayout)}
		if byEntity {
			key.entity = o.EntityID
		}

		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			o.TotalRevenue = copyFloat(o.TotalRevenue)
			o.GrossMarginPct = copyFloat(o.GrossMarginPct)
			o.RequiredNetPct = copyFloat(o.RequiredNetPct)
			out = append(out, o)
			continue
		}

		agg := &out[i]
		agg.Spend += o.Spend
		agg.AdRevenue += o.AdRevenue
		if o.TotalRevenue != nil {
			if agg.TotalRevenue == nil {
				agg.TotalRevenue = model.Float(*o.TotalRevenue)
			} else {
				*agg.TotalRevenue += *o.TotalRevenue
			}
		}
		if agg.GrossMarginPct == nil {
			agg.GrossMarginPct = copyFloat(o.GrossMarginPct)
		}
		if agg.RequiredNetPct == nil {
			agg.RequiredNetPct = copyFloat(o.RequiredNetPct)
		}
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return model.Float(*v)
}
