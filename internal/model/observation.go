// Package model holds the shared data types for spend optimization runs.
package model

import (
	"sort"
	"time"
)

// DateLayout is the canonical day format used in exports and API payloads.
const DateLayout = "2006-01-02"

// UnassignedEntity labels observations without an entity id in output.
const UnassignedEntity = "unassigned"

// Observation is one day of spend and revenue for a product.
// Optional fields are nil when the source did not supply them; zero is a real value.
type Observation struct {
	EntityID       string    `json:"entity_id,omitempty" yaml:"entity_id,omitempty"`
	Date           time.Time `json:"date" yaml:"date"`
	Spend          float64   `json:"spend" yaml:"spend"`
	AdRevenue      float64   `json:"ad_revenue" yaml:"ad_revenue"`
	TotalRevenue   *float64  `json:"total_revenue,omitempty" yaml:"total_revenue,omitempty"`
	GrossMarginPct *float64  `json:"gross_margin_pct,omitempty" yaml:"gross_margin_pct,omitempty"`
	RequiredNetPct *float64  `json:"required_net_pct,omitempty" yaml:"required_net_pct,omitempty"`
}

// GroupKey returns the display id: the entity id, or UnassignedEntity when it is blank.
func (o Observation) GroupKey() string {
	if o.EntityID == "" {
		return UnassignedEntity
	}
	return o.EntityID
}

// HasMargin reports whether the observation carries both margin inputs.
func (o Observation) HasMargin() bool {
	return o.GrossMarginPct != nil && o.RequiredNetPct != nil
}

// SortByDate returns a copy of obs ordered by date ascending.
// Observations sharing a date keep their input order.
func SortByDate(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	copy(out, obs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Float returns a pointer to v. Handy for optional observation fields.
func Float(v float64) *float64 {
	return &v
}
