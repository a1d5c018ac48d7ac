package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

// Format names an input CSV layout.
type Format string

const (
	// FormatTable is a headed table: timestamp, rainfall_mm, discharge[, runoff].
	FormatTable Format = "table"
	// FormatDNRM is a Water Monitoring Portal export: three banner lines,
	// three footer lines, columns 0 (time), 1 (rainfall mm), 3 (discharge m³/s).
	FormatDNRM Format = "dnrm"
)

const (
	dnrmHeaderLines = 3
	dnrmFooterLines = 3
)

// timeLayouts are tried in order. Slash dates are day-first.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02/01/2006",
}

// ParseTime parses a timestamp in any accepted layout, as UTC when the layout
// carries no zone.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Read parses r in the given format, validates it and derives timestep and
// runoff columns.
func Read(r io.Reader, format Format) (Series, error) {
	switch format {
	case FormatDNRM:
		return ReadDNRM(r)
	case FormatTable, "":
		return ReadTable(r)
	default:
		return nil, fmt.Errorf("timeseries: unknown format %q: %w", format, model.ErrInvalidInput)
	}
}

// ReadDNRM parses a DNRM export. Blank rainfall or discharge cells read as 0.
func ReadDNRM(r io.Reader) (Series, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) <= dnrmHeaderLines+dnrmFooterLines {
		return nil, &ValidationError{Row: -1, Reason: "series is empty"}
	}
	records = records[dnrmHeaderLines : len(records)-dnrmFooterLines]

	s := make(Series, 0, len(records))
	for i, rec := range records {
		if len(rec) < 4 {
			return nil, &ValidationError{Row: i, Reason: fmt.Sprintf("expected at least 4 columns, got %d", len(rec))}
		}
		t, err := ParseTime(rec[0])
		if err != nil {
			return nil, &ValidationError{Row: i, Reason: err.Error()}
		}
		rain, err := parseFloat(rec[1])
		if err != nil {
			return nil, &ValidationError{Row: i, Reason: "rainfall: " + err.Error()}
		}
		q, err := parseFloat(rec[3])
		if err != nil {
			return nil, &ValidationError{Row: i, Reason: "discharge: " + err.Error()}
		}
		s = append(s, Sample{Time: t, Rainfall: rain, Discharge: q})
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.Derive(true), nil
}

// ReadTable parses a headed CSV. Column names are matched case-insensitively.
// When a runoff column is present it is used as-is; otherwise runoff is
// derived from discharge.
func ReadTable(r io.Reader) (Series, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, &ValidationError{Row: -1, Reason: "series is empty"}
	}

	cols := map[string]int{}
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	find := func(names ...string) int {
		for _, n := range names {
			if i, ok := cols[n]; ok {
				return i
			}
		}
		return -1
	}
	tCol := find("timestamp", "datetime", "time", "date")
	rainCol := find("rainfall_mm", "rainfall")
	qCol := find("discharge", "discharge_or_runoff", "flow")
	runoffCol := find("runoff", "volume")
	if tCol < 0 {
		return nil, &ValidationError{Row: -1, Reason: "missing timestamp column"}
	}
	if qCol < 0 && runoffCol < 0 {
		return nil, &ValidationError{Row: -1, Reason: "missing discharge or runoff column"}
	}

	cell := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	s := make(Series, 0, len(records)-1)
	for i, rec := range records[1:] {
		t, err := ParseTime(cell(rec, tCol))
		if err != nil {
			return nil, &ValidationError{Row: i, Reason: err.Error()}
		}
		smp := Sample{Time: t}
		if smp.Rainfall, err = parseFloat(cell(rec, rainCol)); err != nil {
			return nil, &ValidationError{Row: i, Reason: "rainfall: " + err.Error()}
		}
		if smp.Discharge, err = parseFloat(cell(rec, qCol)); err != nil {
			return nil, &ValidationError{Row: i, Reason: "discharge: " + err.Error()}
		}
		if smp.Runoff, err = parseFloat(cell(rec, runoffCol)); err != nil {
			return nil, &ValidationError{Row: i, Reason: "runoff: " + err.Error()}
		}
		s = append(s, smp)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.Derive(runoffCol < 0), nil
}

// ReadIrrigationTargets parses a two-column CSV of weekly irrigation targets
// (mm). The key column is either an integer period (month 1-12 or ISO week)
// or a date, in which case its month or ISO week is used.
func ReadIrrigationTargets(r io.Reader, period model.TargetPeriod) (map[int]float64, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	out := make(map[int]float64)
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, &ValidationError{Row: i, Reason: "irrigation: " + err.Error()}
		}
		key, err := periodKey(rec[0], period)
		if err != nil {
			return nil, &ValidationError{Row: i, Reason: err.Error()}
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil, &ValidationError{Row: -1, Reason: "no irrigation targets"}
	}
	return out, nil
}

func periodKey(s string, period model.TargetPeriod) (int, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return 0, err
	}
	if period == model.TargetByWeek {
		_, w := t.ISOWeek()
		return w, nil
	}
	return int(t.Month()), nil
}

// rowHeader is the output table header.
var rowHeader = []string{
	"timestamp", "rainfall_mm", "discharge", "runoff", "timestep",
	"demand_mm", "demand_volume", "overflow", "harvested", "tank_volume",
	"detention_volume", "tank_overflow", "fraction_demand_met", "supplied",
	"cumulative_mass_balance_error",
}

// WriteRows writes the simulated output table. Undefined fractions are left
// blank.
func WriteRows(w io.Writer, rows []model.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rowHeader); err != nil {
		return fmt.Errorf("timeseries: write header: %w", err)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, r := range rows {
		rec := []string{
			r.Time.Format(time.RFC3339),
			f(r.Rainfall), f(r.Discharge), f(r.Runoff), f(r.Timestep),
			f(r.DemandMM), f(r.DemandVolume), f(r.Overflow), f(r.Harvested),
			f(r.TankVolume), f(r.DetentionVolume), f(r.TankOverflow),
			r.FractionMet.String(), f(r.Supplied), f(r.CumulativeError),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("timeseries: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, &ValidationError{Row: pe.Line - 1, Reason: pe.Err.Error()}
		}
		return nil, fmt.Errorf("timeseries: read csv: %w", err)
	}
	return records, nil
}

// parseFloat reads a numeric cell; blanks are zero.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
