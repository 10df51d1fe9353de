package model

// CurveParams are the fitted response curve parameters.
type CurveParams struct {
	Alpha float64 `json:"alpha" yaml:"alpha"` // saturation ceiling
	Gamma float64 `json:"gamma" yaml:"gamma"` // shape
	K     float64 `json:"k" yaml:"k"`         // half-saturation spend
}

// OptimizationResult is the recommendation for one product.
type OptimizationResult struct {
	OptimalSpend            float64 `json:"optimal_spend" yaml:"optimal_spend"`
	ExpectedRevenue         float64 `json:"expected_revenue" yaml:"expected_revenue"`
	MarginalReturnAtOptimal float64 `json:"marginal_return_at_optimal" yaml:"marginal_return_at_optimal"`
	TotalReturnAtOptimal    float64 `json:"total_return_at_optimal" yaml:"total_return_at_optimal"`
	Feasible                bool    `json:"feasible" yaml:"feasible"`

	// Baseline comparison, set only when a current spend was supplied.
	CurrentSpend           *float64 `json:"current_spend,omitempty" yaml:"current_spend,omitempty"`
	CurrentExpectedRevenue *float64 `json:"current_expected_revenue,omitempty" yaml:"current_expected_revenue,omitempty"`
	CurrentMarginalReturn  *float64 `json:"current_marginal_return,omitempty" yaml:"current_marginal_return,omitempty"`
	DeltaSpend             *float64 `json:"delta_spend,omitempty" yaml:"delta_spend,omitempty"`
	RevenueLift            *float64 `json:"revenue_lift,omitempty" yaml:"revenue_lift,omitempty"`

	// Diagnostics.
	Params         CurveParams `json:"params" yaml:"params"`
	SeasonalFactor float64     `json:"seasonal_factor" yaml:"seasonal_factor"`
	MaxSearchSpend float64     `json:"max_search_spend" yaml:"max_search_spend"`
	TargetReturn   float64     `json:"target_return" yaml:"target_return"`
	FitTruncated   bool        `json:"fit_truncated,omitempty" yaml:"fit_truncated,omitempty"`
}

// Outcome tags how a portfolio entity was resolved.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeInsufficientData  Outcome = "insufficient_data"
	OutcomeNonPositiveMargin Outcome = "non_positive_margin"
	OutcomeError             Outcome = "error"
)

// Action is the recommended direction for a product's spend.
type Action string

const (
	ActionIncrease Action = "Increase"
	ActionDecrease Action = "Decrease"
	ActionPause    Action = "Pause"
)

// PortfolioRow is the per-entity result of a portfolio run.
// Numeric recommendation fields are only meaningful when Outcome is success.
type PortfolioRow struct {
	EntityID     string  `json:"entity_id" yaml:"entity_id"`
	Outcome      Outcome `json:"outcome" yaml:"outcome"`
	Action       Action  `json:"action,omitempty" yaml:"action,omitempty"`
	Error        string  `json:"error,omitempty" yaml:"error,omitempty"`
	Observations int     `json:"observations" yaml:"observations"`
	Feasible     bool    `json:"feasible" yaml:"feasible"`

	ContributionMarginPct float64 `json:"contribution_margin_pct,omitempty" yaml:"contribution_margin_pct,omitempty"`
	CurrentSpend          float64 `json:"current_spend,omitempty" yaml:"current_spend,omitempty"`
	CurrentRevenue        float64 `json:"current_revenue,omitempty" yaml:"current_revenue,omitempty"`
	OptimalSpend          float64 `json:"optimal_spend,omitempty" yaml:"optimal_spend,omitempty"`
	ExpectedRevenue       float64 `json:"expected_revenue,omitempty" yaml:"expected_revenue,omitempty"`
	DeltaSpend            float64 `json:"delta_spend,omitempty" yaml:"delta_spend,omitempty"`
	RevenueLift           float64 `json:"revenue_lift,omitempty" yaml:"revenue_lift,omitempty"`
	MarginalReturn        float64 `json:"marginal_return,omitempty" yaml:"marginal_return,omitempty"`
	TotalReturn           float64 `json:"total_return,omitempty" yaml:"total_return,omitempty"`

	// OrganicSharePct is nil when no observation reported total revenue.
	OrganicSharePct *float64 `json:"organic_share_pct,omitempty" yaml:"organic_share_pct,omitempty"`

	Result *OptimizationResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// ActionLabel renders the row's action for display.
func (r PortfolioRow) ActionLabel() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return string(r.Action)
	case OutcomeInsufficientData:
		return "Insufficient data"
	case OutcomeNonPositiveMargin:
		return "Non-positive margin"
	case OutcomeError:
		return "Error: " + r.Error
	default:
		return string(r.Outcome)
	}
}

// ClassifyAction maps a feasible flag and spend comparison to an Action.
func ClassifyAction(feasible bool, optimalSpend, currentSpend float64) Action {
	switch {
	case !feasible:
		return ActionPause
	case optimalSpend > currentSpend:
		return ActionIncrease
	default:
		return ActionDecrease
	}
}
