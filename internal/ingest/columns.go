// Package ingest parses spend/revenue exports (CSV, TSV, XLSX) into typed
// observations.
package ingest

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// Field is a canonical input column.
type Field string

const (
	FieldDate         Field = "date"
	FieldEntity       Field = "entity_id"
	FieldSpend        Field = "spend"
	FieldAdRevenue    Field = "ad_revenue"
	FieldTotalRevenue Field = "total_revenue"
	FieldGrossMargin  Field = "gross_margin_pct"
	FieldRequiredNet  Field = "required_net_pct"
)

var requiredFields = []Field{FieldDate, FieldSpend, FieldAdRevenue}

// columnAliases maps folded header names (lowercase, alphanumerics only) to
// canonical fields.
var columnAliases = map[string]Field{
	// Date
	"date":       FieldDate,
	"day":        FieldDate,
	"reportdate": FieldDate,
	"startdate":  FieldDate,

	// Entity
	"entityid":  FieldEntity,
	"entity":    FieldEntity,
	"product":   FieldEntity,
	"productid": FieldEntity,
	"sku":       FieldEntity,
	"asin":      FieldEntity,
	"campaign":  FieldEntity,

	// Spend
	"spend":   FieldSpend,
	"adspend": FieldSpend,
	"cost":    FieldSpend,
	"adcost":  FieldSpend,
	"amount":  FieldSpend,

	// Ad revenue
	"adrevenue":            FieldAdRevenue,
	"revenue":              FieldAdRevenue,
	"sales":                FieldAdRevenue,
	"adsales":              FieldAdRevenue,
	"attributedrevenue":    FieldAdRevenue,
	"attributedsales":      FieldAdRevenue,
	"7dayattributedsales":  FieldAdRevenue,
	"14dayattributedsales": FieldAdRevenue,

	// Total revenue
	"totalrevenue":        FieldTotalRevenue,
	"totalsales":          FieldTotalRevenue,
	"orderedproductsales": FieldTotalRevenue,

	// Margins
	"grossmargin":    FieldGrossMargin,
	"grossmarginpct": FieldGrossMargin,
	"margin":         FieldGrossMargin,
	"requirednet":    FieldRequiredNet,
	"requirednetpct": FieldRequiredNet,
	"netmargin":      FieldRequiredNet,
	"targetnet":      FieldRequiredNet,
}

// ColumnMapping resolves header positions to canonical fields.
type ColumnMapping struct {
	Index    map[Field]int
	RawNames []string
}

// Has reports whether f was found in the header.
func (m *ColumnMapping) Has(f Field) bool {
	_, ok := m.Index[f]
	return ok
}

// cell returns the trimmed value of f in row, or "" when absent.
func (m *ColumnMapping) cell(row []string, f Field) string {
	i, ok := m.Index[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// FoldHeader normalizes a header for alias lookup: case-folded, with
// everything but letters and digits removed.
func FoldHeader(h string) string {
	folded := cases.Fold().String(strings.TrimSpace(h))
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MapColumns resolves a header row. The first column matching a field wins.
// Missing date, spend or ad revenue columns are an error.
func MapColumns(header []string) (*ColumnMapping, error) {
	m := &ColumnMapping{
		Index:    make(map[Field]int, len(header)),
		RawNames: header,
	}
	for i, h := range header {
		field, ok := columnAliases[FoldHeader(h)]
		if !ok {
			continue
		}
		if _, seen := m.Index[field]; !seen {
			m.Index[field] = i
		}
	}

	var missing []string
	for _, f := range requiredFields {
		if !m.Has(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("ingest: missing required columns: %s", strings.Join(missing, ", "))
	}
	return m, nil
}
