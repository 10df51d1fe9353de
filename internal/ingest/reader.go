package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

// Options configures file ingestion.
type Options struct {
	// Sheet selects an xlsx worksheet by name. Empty means the first sheet.
	Sheet string
	// Delimiter overrides the delimiter inferred from the file extension.
	Delimiter rune
}

// Report summarizes an ingestion.
type Report struct {
	Rows    int
	Parsed  int
	Skipped int
	// Mapped lists the canonical fields found in the header.
	Mapped []Field
}

// ReadFile parses a .csv, .tsv, .txt or .xlsx export into observations.
func ReadFile(ctx context.Context, path string, opts Options) ([]model.Observation, *Report, error) {
	var (
		rows [][]string
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		rows, err = readXLSX(path, opts.Sheet)
	case ".csv", ".tsv", ".txt":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, nil, eris.Wrapf(openErr, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		delim := opts.Delimiter
		if delim == 0 && ext == ".tsv" {
			delim = '\t'
		}
		rows, err = readDelimited(ctx, f, delim)
	default:
		return nil, nil, eris.Errorf("ingest: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, nil, err
	}

	obs, report, err := ParseRows(rows)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: %s", filepath.Base(path))
	}

	zap.L().Info("ingest: file parsed",
		zap.String("path", path),
		zap.Int("rows", report.Rows),
		zap.Int("parsed", report.Parsed),
		zap.Int("skipped", report.Skipped),
	)
	return obs, report, nil
}

// Read parses delimited text from r.
func Read(ctx context.Context, r io.Reader, opts Options) ([]model.Observation, *Report, error) {
	rows, err := readDelimited(ctx, r, opts.Delimiter)
	if err != nil {
		return nil, nil, err
	}
	return ParseRows(rows)
}

// ParseRows maps the header in rows[0] and converts the remaining rows.
// Blank rows are ignored. Rows with an unparseable date, spend or ad revenue
// are skipped and counted.
func ParseRows(rows [][]string) ([]model.Observation, *Report, error) {
	if len(rows) == 0 {
		return nil, nil, eris.New("ingest: no header row")
	}
	mapping, err := MapColumns(rows[0])
	if err != nil {
		return nil, nil, err
	}

	report := &Report{}
	for _, f := range []Field{FieldDate, FieldEntity, FieldSpend, FieldAdRevenue, FieldTotalRevenue, FieldGrossMargin, FieldRequiredNet} {
		if mapping.Has(f) {
			report.Mapped = append(report.Mapped, f)
		}
	}

	obs := make([]model.Observation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		report.Rows++

		o, err := parseRow(mapping, row)
		if err != nil {
			report.Skipped++
			zap.L().Debug("ingest: skipping row", zap.Int("line", i+2), zap.Error(err))
			continue
		}
		obs = append(obs, o)
		report.Parsed++
	}
	return obs, report, nil
}

func parseRow(m *ColumnMapping, row []string) (model.Observation, error) {
	var o model.Observation

	date, err := ParseDate(m.cell(row, FieldDate))
	if err != nil {
		return o, err
	}
	spend, ok, err := ParseNumber(m.cell(row, FieldSpend))
	if err != nil {
		return o, err
	}
	if !ok {
		return o, eris.New("ingest: missing spend")
	}
	revenue, ok, err := ParseNumber(m.cell(row, FieldAdRevenue))
	if err != nil {
		return o, err
	}
	if !ok {
		return o, eris.New("ingest: missing ad revenue")
	}

	o = model.Observation{
		EntityID:  m.cell(row, FieldEntity),
		Date:      date,
		Spend:     spend,
		AdRevenue: revenue,
	}
	// Bad optional cells are dropped rather than rejecting the row.
	o.TotalRevenue, _ = parseOptional(m.cell(row, FieldTotalRevenue))
	o.GrossMarginPct, _ = parseOptional(m.cell(row, FieldGrossMargin))
	o.RequiredNetPct, _ = parseOptional(m.cell(row, FieldRequiredNet))
	return o, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
