package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createTestXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sh.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func day(s string) time.Time {
	t, _ := time.Parse(model.DateLayout, s)
	return t
}

func TestFoldHeader(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Date":                   "date",
		"  Ad Spend ($) ":        "adspend",
		"AD_REVENUE":             "adrevenue",
		"Gross Margin %":         "grossmargin",
		"7 Day Attributed Sales": "7dayattributedsales",
	}
	for in, want := range tests {
		assert.Equal(t, want, FoldHeader(in), in)
	}
}

func TestMapColumns(t *testing.T) {
	t.Parallel()

	m, err := MapColumns([]string{"SKU", "Day", "Cost", "Sales", "Total Sales", "Notes", "Spend"})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Index[FieldEntity])
	assert.Equal(t, 1, m.Index[FieldDate])
	assert.Equal(t, 2, m.Index[FieldSpend], "first matching column wins")
	assert.Equal(t, 3, m.Index[FieldAdRevenue])
	assert.Equal(t, 4, m.Index[FieldTotalRevenue])
	assert.False(t, m.Has(FieldGrossMargin))

	_, err = MapColumns([]string{"Date", "Notes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spend")
	assert.Contains(t, err.Error(), "ad_revenue")
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
		err  bool
	}{
		{in: "1234.5", want: 1234.5, ok: true},
		{in: "$1,234.50", want: 1234.5, ok: true},
		{in: "25%", want: 25, ok: true},
		{in: " € 80 ", want: 80, ok: true},
		{in: "(12.5)", want: -12.5, ok: true},
		{in: "", ok: false},
		{in: "-", ok: false},
		{in: "n/a", err: true},
		{in: "NaN", err: true},
		{in: "Inf", err: true},
		{in: "-Infinity", err: true},
		{in: "1e400", err: true},
	}
	for _, tt := range tests {
		v, ok, err := ParseNumber(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, v, 1e-9, tt.in)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	want := day("2025-08-01")
	for _, in := range []string{
		"2025-08-01",
		"08/01/2025",
		"8/1/2025",
		"2025/08/01",
		"Aug 1, 2025",
		"August 1, 2025",
		"2025-08-01T15:04:05Z",
		"45870",
	} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}

	_, err := ParseDate("yesterday")
	require.Error(t, err)
	_, err = ParseDate("")
	require.Error(t, err)
}

func TestParseRows_SkipsBadRows(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"Date", "Product", "Spend", "Ad Revenue", "Total Revenue", "Gross Margin", "Required Net"},
		{"2025-08-01", "A", "$300", "2,600", "4000", "25%", "14%"},
		{"not a date", "A", "400", "3000", "", "", ""},
		{"2025-08-03", "A", "", "3300", "", "", ""},
		{"", "", "", "", "", "", ""},
		{"2025-08-04", "", "500", "3300", "junk", "", ""},
	}

	obs, report, err := ParseRows(rows)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Parsed)
	assert.Equal(t, 2, report.Skipped)
	assert.Contains(t, report.Mapped, FieldRequiredNet)
	require.Len(t, obs, 2)

	first := obs[0]
	assert.Equal(t, "A", first.EntityID)
	assert.True(t, day("2025-08-01").Equal(first.Date))
	assert.Equal(t, 300.0, first.Spend)
	assert.Equal(t, 2600.0, first.AdRevenue)
	require.NotNil(t, first.TotalRevenue)
	assert.Equal(t, 4000.0, *first.TotalRevenue)
	require.True(t, first.HasMargin())
	assert.Equal(t, 25.0, *first.GrossMarginPct)
	assert.Equal(t, 14.0, *first.RequiredNetPct)

	second := obs[1]
	assert.Empty(t, second.EntityID)
	assert.Nil(t, second.TotalRevenue, "unparseable optional cell becomes nil")
	assert.False(t, second.HasMargin())
}

func TestParseRows_SkipsNonFiniteNumbers(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"Date", "Spend", "Ad Revenue"},
		{"2025-08-01", "300", "2600"},
		{"2025-08-02", "NaN", "3000"},
		{"2025-08-03", "500", "Infinity"},
		{"2025-08-04", "600", "3500"},
	}

	obs, report, err := ParseRows(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Parsed)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, obs, 2)
	assert.Equal(t, 300.0, obs[0].Spend)
	assert.Equal(t, 600.0, obs[1].Spend)
}

func TestParseRows_NoHeader(t *testing.T) {
	t.Parallel()
	_, _, err := ParseRows(nil)
	require.Error(t, err)
}

func TestReadFile_CSV(t *testing.T) {
	path := writeFile(t, "daily.csv", "\ufeffDate,Spend,Ad Revenue\n2025-08-01,300,2600\n2025-08-02,400,3000\n2025-08-03,500,3300\n")

	obs, report, err := ReadFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Parsed)
	require.Len(t, obs, 3)
	assert.Equal(t, 500.0, obs[2].Spend)
}

func TestReadFile_TSV(t *testing.T) {
	path := writeFile(t, "daily.tsv", "date\tcost\tsales\n2025-08-01\t300\t2600\n")

	obs, _, err := ReadFile(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 2600.0, obs[0].AdRevenue)
}

func TestReadFile_XLSX(t *testing.T) {
	path := createTestXLSX(t, "Report", [][]string{
		{"ASIN", "Date", "Spend", "Attributed Sales"},
		{"B01", "08/01/2025", "300", "2600"},
		{"B01", "08/02/2025", "400", "3000"},
	})

	obs, report, err := ReadFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Parsed)
	require.Len(t, obs, 2)
	assert.Equal(t, "B01", obs[0].EntityID)
	assert.True(t, day("2025-08-02").Equal(obs[1].Date))

	_, _, err = ReadFile(context.Background(), path, Options{Sheet: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadFile_Errors(t *testing.T) {
	_, _, err := ReadFile(context.Background(), writeFile(t, "data.json", "{}"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")

	_, _, err = ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), Options{})
	require.Error(t, err)

	_, _, err = ReadFile(context.Background(), writeFile(t, "bad.csv", "foo,bar\n1,2\n"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestRead_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Read(ctx, strings.NewReader("date,spend,revenue\n2025-08-01,1,2\n"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	in := []model.Observation{
		{EntityID: "A", Date: day("2025-08-01"), Spend: 100, AdRevenue: 500},
		{EntityID: "B", Date: day("2025-08-01"), Spend: 50, AdRevenue: 200, TotalRevenue: model.Float(300)},
		{EntityID: "A", Date: day("2025-08-01"), Spend: 20, AdRevenue: 80, TotalRevenue: model.Float(120),
			GrossMarginPct: model.Float(30), RequiredNetPct: model.Float(10)},
		{EntityID: "A", Date: day("2025-08-02"), Spend: 10, AdRevenue: 40},
	}

	byEntity := Aggregate(in, true)
	require.Len(t, byEntity, 3)
	assert.Equal(t, "A", byEntity[0].EntityID)
	assert.Equal(t, 120.0, byEntity[0].Spend)
	assert.Equal(t, 580.0, byEntity[0].AdRevenue)
	require.NotNil(t, byEntity[0].TotalRevenue)
	assert.Equal(t, 120.0, *byEntity[0].TotalRevenue)
	assert.True(t, byEntity[0].HasMargin())
	assert.Equal(t, "B", byEntity[1].EntityID)
	assert.True(t, day("2025-08-02").Equal(byEntity[2].Date))

	byDate := Aggregate(in, false)
	require.Len(t, byDate, 2)
	assert.Equal(t, 170.0, byDate[0].Spend)
	assert.Equal(t, 780.0, byDate[0].AdRevenue)
	require.NotNil(t, byDate[0].TotalRevenue)
	assert.Equal(t, 420.0, *byDate[0].TotalRevenue)

	// Inputs are untouched.
	assert.Equal(t, 300.0, *in[1].TotalRevenue)
	assert.Equal(t, 100.0, in[0].Spend)
}
