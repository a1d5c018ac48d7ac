package mcp

import (
	"fmt"
	"math"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

// compactRun returns a minimal representation of a run for MCP responses.
// Drops the series hash, the full summary breakdown and the audit internals
// that agents don't act on, and rounds volumes to litres.
func compactRun(r model.Run) map[string]any {
	m := map[string]any{
		"id":              r.ID,
		"dataset":         r.Dataset,
		"params":          r.Params,
		"demand_total":    round3(r.Summary.DemandTotal),
		"harvest_total":   round3(r.Summary.HarvestTotal),
		"overflow":        round3(r.Summary.OverflowTotal + r.Summary.TankOverflowTotal),
		"steps":           r.Steps,
		"cached":          r.Cached,
		"created_at":      r.CreatedAt,
		"mass_balance_ok": r.MassBalance.Within,
	}
	if r.Summary.FractionSupplied.Valid {
		m["fraction_supplied"] = math.Round(r.Summary.FractionSupplied.Value*10000) / 10000
	} else {
		m["fraction_supplied"] = nil
	}
	if len(r.Warnings) > 0 {
		m["warnings"] = r.Warnings
	}
	if note := runNote(r); note != "" {
		m["note"] = note
	}
	return m
}

// round3 rounds to three decimal places (litres, for m³).
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// runNote produces a one-line reading of a run for an agent sizing a tank.
// Rules are evaluated in priority order; first match wins. Returns "" when no
// rule fires.
func runNote(r model.Run) string {
	s := r.Summary
	switch {
	case !r.MassBalance.Within:
		return fmt.Sprintf("Mass balance error %.3g m³ exceeds tolerance; treat totals with caution.", r.MassBalance.Error)

	case !s.FractionSupplied.Valid:
		return "No irrigation demand in this period; fraction supplied is undefined."

	case s.FractionSupplied.Value >= 0.999 && s.TankOverflowTotal > 0:
		return fmt.Sprintf("Demand fully met with %.1f m³ spilling at the tank; a smaller tank may do.", s.TankOverflowTotal)

	case s.FractionSupplied.Value >= 0.999:
		return "Demand fully met."

	case s.TankOverflowTotal == 0 && s.OverflowTotal > 0 && s.PumpedTotal < s.RunoffTotal/2:
		return "Less than half the runoff reached the tank; pump capacity or basin size may be limiting."
	}
	return ""
}
