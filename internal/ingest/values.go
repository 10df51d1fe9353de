package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"01-02-06",
	"1/2/06",
	time.RFC3339,
}

// excelEpoch is day zero for spreadsheet serial dates (the 1900 leap-year bug included).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses s using the supported layouts, falling back to a
// spreadsheet serial day number. Times are truncated to the UTC day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, eris.New("ingest: empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		return excelEpoch.AddDate(0, 0, int(serial)), nil
	}
	return time.Time{}, eris.Errorf("ingest: unrecognized date %q", s)
}

var numberReplacer = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "",
	",", "", "%", "", " ", "", "\u00a0", "",
)

// ParseNumber coerces a formatted numeric cell ("$1,234.50", "25%", "(12)")
// to a float. ok is false for a blank cell.
func ParseNumber(s string) (v float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	clean := numberReplacer.Replace(s)
	if clean == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, eris.Errorf("ingest: invalid number %q", s)
	}
	if negative {
		v = -v
	}
	return v, true, nil
}

func parseOptional(s string) (*float64, error) {
	v, ok, err := ParseNumber(s)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}
