package export

import (
	"io"
	"strconv"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

// portfolioColumns defines the ordered portfolio output columns.
var portfolioColumns = []string{
	"Entity",
	"Action",
	"Observations",
	"Contribution Margin %",
	"Current Spend",
	"Current Revenue",
	"Optimal Spend",
	"Expected Revenue",
	"Delta Spend",
	"Revenue Lift",
	"Marginal ROAS",
	"Total ROAS",
	"Organic Share %",
}

// ResultTable renders a single optimization as metric/value rows.
func ResultTable(res *model.OptimizationResult) Table {
	rows := [][]string{
		{"Feasible", strconv.FormatBool(res.Feasible)},
		{"Optimal Spend", Money(res.OptimalSpend)},
		{"Expected Revenue", Money(res.ExpectedRevenue)},
		{"Marginal ROAS at Optimal", Ratio(res.MarginalReturnAtOptimal)},
		{"Total ROAS at Optimal", Ratio(res.TotalReturnAtOptimal)},
		{"Required Marginal ROAS", Ratio(res.TargetReturn)},
	}
	if res.CurrentSpend != nil {
		rows = append(rows,
			[]string{"Current Spend", optMoney(res.CurrentSpend)},
			[]string{"Current Expected Revenue", optMoney(res.CurrentExpectedRevenue)},
			[]string{"Current Marginal ROAS", optRatio(res.CurrentMarginalReturn)},
			[]string{"Delta Spend", optMoney(res.DeltaSpend)},
			[]string{"Revenue Lift", optMoney(res.RevenueLift)},
		)
	}
	rows = append(rows,
		[]string{"Seasonal Factor", Ratio(res.SeasonalFactor)},
		[]string{"Max Search Spend", Money(res.MaxSearchSpend)},
		[]string{"Curve Alpha", Money(res.Params.Alpha)},
		[]string{"Curve Gamma", Ratio(res.Params.Gamma)},
		[]string{"Curve K", Money(res.Params.K)},
	)
	if res.FitTruncated {
		rows = append(rows, []string{"Fit Truncated", "true"})
	}
	return Table{Sheet: "Recommendation", Header: []string{"Metric", "Value"}, Rows: rows}
}

// PortfolioTable renders one row per entity. Numeric columns are blank for
// entities that were not optimized.
func PortfolioTable(rows []model.PortfolioRow) Table {
	t := Table{Sheet: "Portfolio", Header: portfolioColumns}
	for _, r := range rows {
		t.Rows = append(t.Rows, buildPortfolioRow(r))
	}
	return t
}

func buildPortfolioRow(r model.PortfolioRow) []string {
	row := make([]string, len(portfolioColumns))
	row[0] = r.EntityID
	row[1] = r.ActionLabel()
	row[2] = strconv.Itoa(r.Observations)
	if r.Outcome == model.OutcomeNonPositiveMargin {
		row[3] = Pct(r.ContributionMarginPct)
	}
	if r.Outcome != model.OutcomeSuccess {
		return row
	}

	row[3] = Pct(r.ContributionMarginPct)
	row[4] = Money(r.CurrentSpend)
	row[5] = Money(r.CurrentRevenue)
	row[6] = Money(r.OptimalSpend)
	row[7] = Money(r.ExpectedRevenue)
	row[8] = Money(r.DeltaSpend)
	row[9] = Money(r.RevenueLift)
	row[10] = Ratio(r.MarginalReturn)
	row[11] = Ratio(r.TotalReturn)
	if r.OrganicSharePct != nil {
		row[12] = Pct(*r.OrganicSharePct)
	}
	return row
}

// WriteResult writes a single-product recommendation in format f.
func WriteResult(w io.Writer, f Format, res *model.OptimizationResult) error {
	return write(w, f, res, ResultTable(res))
}

// WritePortfolio writes portfolio rows in format f.
func WritePortfolio(w io.Writer, f Format, rows []model.PortfolioRow) error {
	return write(w, f, rows, PortfolioTable(rows))
}
