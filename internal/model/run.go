package model

import (
	"time"

	"github.com/google/uuid"
)

// Dataset describes a registered input series.
type Dataset struct {
	Name         string    `json:"name"`
	Hash         string    `json:"content_hash"`
	Rows         int       `json:"rows"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Run is one completed simulation. Immutable once stored.
type Run struct {
	ID          uuid.UUID         `json:"id"`
	Dataset     string            `json:"dataset"`
	SeriesHash  string            `json:"series_hash"`
	Params      Params            `json:"params"`
	Summary     Summary           `json:"summary"`
	MassBalance MassBalanceReport `json:"mass_balance"`
	Steps       int               `json:"steps"`
	Warnings    []string          `json:"warnings,omitempty"`
	DurationMS  int64             `json:"duration_ms"`
	Cached      bool              `json:"cached"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Summary aggregates a simulated series into scalar totals (m³).
type Summary struct {
	DemandTotal      float64  `json:"demand_total"`
	HarvestTotal     float64  `json:"harvest_total"` // demand volume actually supplied
	FractionSupplied Fraction `json:"fraction_supplied"`

	RunoffTotal         float64 `json:"runoff_total"`
	PumpedTotal         float64 `json:"pumped_total"`
	OverflowTotal       float64 `json:"overflow_total"`
	TankOverflowTotal   float64 `json:"tank_overflow_total"`
	MeanTankVolume      float64 `json:"mean_tank_volume"`
	P90TankVolume       float64 `json:"p90_tank_volume"`
	StepsWithDemand     int     `json:"steps_with_demand"`
	StepsDemandFullyMet int     `json:"steps_demand_fully_met"`
}

// Map returns the summary keyed the way the dashboard consumed it.
func (s Summary) Map() map[string]any {
	m := map[string]any{
		"demand_total":  s.DemandTotal,
		"harvest_total": s.HarvestTotal,
	}
	if s.FractionSupplied.Valid {
		m["fraction_supplied"] = s.FractionSupplied.Value
	} else {
		m["fraction_supplied"] = nil
	}
	return m
}

// MassBalanceReport is the result of auditing a completed run.
type MassBalanceReport struct {
	TotalInflow   float64 `json:"total_inflow"`
	TotalOutflow  float64 `json:"total_outflow"`
	StorageChange float64 `json:"storage_change"`
	Error         float64 `json:"error"`
	RunningError  float64 `json:"running_error"`
	Tolerance     float64 `json:"tolerance"`
	Steps         int     `json:"steps"`
	Within        bool    `json:"within_tolerance"`
}

// Row is one line of the output table: the input sample, its demand and the
// simulated state.
type Row struct {
	Time      time.Time `json:"timestamp"`
	Rainfall  float64   `json:"rainfall_mm"`
	Discharge float64   `json:"discharge"`
	Runoff    float64   `json:"runoff"`
	Timestep  float64   `json:"timestep"`

	DemandMM     float64 `json:"demand_mm"`
	DemandVolume float64 `json:"demand_volume"`

	Overflow        float64  `json:"overflow"`
	Harvested       float64  `json:"harvested"`
	TankVolume      float64  `json:"tank_volume"`
	DetentionVolume float64  `json:"detention_volume"`
	TankOverflow    float64  `json:"tank_overflow"`
	FractionMet     Fraction `json:"fraction_demand_met"`
	Supplied        float64  `json:"supplied"`
	CumulativeError float64  `json:"cumulative_mass_balance_error"`
}
