// Package export renders optimization results as JSON, YAML, CSV, XLSX or an
// aligned text table.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatTable Format = "table"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatYAML, FormatCSV, FormatXLSX, FormatTable}

// ParseFormat converts a flag value into a Format. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case "yml":
		return FormatYAML, nil
	case FormatJSON, FormatYAML, FormatCSV, FormatXLSX, FormatTable:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want json, yaml, csv, xlsx or table)", s)
	}
}

// Binary reports whether the format produces non-text output.
func (f Format) Binary() bool { return f == FormatXLSX }

// Table is a header plus string rows, shared by the CSV, XLSX and text renderers.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// Money rounds v to cents, half away from zero.
func Money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// Ratio rounds v to three decimal places.
func Ratio(v float64) string {
	return decimal.NewFromFloat(v).Round(3).StringFixed(3)
}

// Pct rounds a percentage to one decimal place.
func Pct(v float64) string {
	return decimal.NewFromFloat(v).Round(1).StringFixed(1)
}

func optMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return Money(*v)
}

func optRatio(v *float64) string {
	if v == nil {
		return ""
	}
	return Ratio(*v)
}

// write encodes value (JSON, YAML) or its table form (CSV, XLSX, text).
func write(w io.Writer, f Format, value any, table Table) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(value), "export: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return eris.Wrap(err, "export: encode yaml")
		}
		return eris.Wrap(enc.Close(), "export: close yaml encoder")
	case FormatCSV:
		return writeCSV(w, table)
	case FormatXLSX:
		return writeXLSX(w, table)
	case FormatTable:
		return writeText(w, table)
	default:
		return eris.Errorf("export: unsupported format %q", f)
	}
}

func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func writeXLSX(w io.Writer, t Table) error {
	f := xlsx.NewFile()
	name := t.Sheet
	if name == "" {
		name = "Sheet1"
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range t.Header {
		header.AddCell().SetString(h)
	}
	for _, row := range t.Rows {
		r := sheet.AddRow()
		for _, v := range row {
			c := r.AddCell()
			if d, err := decimal.NewFromString(v); err == nil && v != "" {
				c.SetFloat(d.InexactFloat64())
				continue
			}
			c.SetString(v)
		}
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func writeText(w io.Writer, t Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	dashes := make([]string, len(t.Header))
	for i, h := range t.Header {
		dashes[i] = strings.Repeat("-", len(h))
	}
	_, _ = fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	for _, row := range t.Rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return eris.Wrap(tw.Flush(), "export: flush table")
}
