package model

import "time"

// RunMode identifies which optimizer produced a run.
type RunMode string

const (
	RunModeSingle    RunMode = "single"
	RunModePortfolio RunMode = "portfolio"
)

// Run is a persisted optimization invocation.
type Run struct {
	ID           string              `json:"id" yaml:"id"`
	Mode         RunMode             `json:"mode" yaml:"mode"`
	Source       string              `json:"source,omitempty" yaml:"source,omitempty"`
	Observations int                 `json:"observations" yaml:"observations"`
	Settings     RunSettings         `json:"settings" yaml:"settings"`
	Margin       MarginConfig        `json:"margin" yaml:"margin"`
	Result       *OptimizationResult `json:"result,omitempty" yaml:"result,omitempty"`
	Rows         []PortfolioRow      `json:"rows,omitempty" yaml:"rows,omitempty"`
	CreatedAt    time.Time           `json:"created_at" yaml:"created_at"`
}
