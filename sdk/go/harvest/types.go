package harvest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Demand modes.
const (
	DemandConstant  = "constant"
	DemandEstimated = "estimated"
)

// Params is the full parameter record for one simulation.
type Params struct {
	TankMax      float64 `json:"tank_max"`      // m³
	TankStart    float64 `json:"tank_start"`    // m³
	PumpCapacity float64 `json:"pump_capacity"` // m³/s
	DetentionMax float64 `json:"det_max"`       // m³

	DemandMode string  `json:"demand_mode,omitempty"` // defaults to constant
	Demand     float64 `json:"demand,omitempty"`      // m³/s

	IrrigationArea    float64         `json:"irrigation_area,omitempty"` // m²
	TargetPeriod      string          `json:"target_period,omitempty"`   // "month" or "week"
	IrrigationTargets map[int]float64 `json:"irrigation_targets,omitempty"`
}

// SimulateRequest is the body of POST /v1/simulations.
type SimulateRequest struct {
	Dataset       string `json:"dataset"`
	Params        Params `json:"params"`
	IncludeSeries bool   `json:"include_series,omitempty"`
}

// Dataset describes a registered input series.
type Dataset struct {
	Name         string    `json:"name"`
	ContentHash  string    `json:"content_hash"`
	Rows         int       `json:"rows"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Summary holds the scalar totals of a run, in m³. FractionSupplied is nil
// when there was no demand.
type Summary struct {
	DemandTotal         float64  `json:"demand_total"`
	HarvestTotal        float64  `json:"harvest_total"`
	FractionSupplied    *float64 `json:"fraction_supplied"`
	RunoffTotal         float64  `json:"runoff_total"`
	PumpedTotal         float64  `json:"pumped_total"`
	OverflowTotal       float64  `json:"overflow_total"`
	TankOverflowTotal   float64  `json:"tank_overflow_total"`
	MeanTankVolume      float64  `json:"mean_tank_volume"`
	P90TankVolume       float64  `json:"p90_tank_volume"`
	StepsWithDemand     int      `json:"steps_with_demand"`
	StepsDemandFullyMet int      `json:"steps_demand_fully_met"`
}

// MassBalance is the conservation audit of a run.
type MassBalance struct {
	TotalInflow   float64 `json:"total_inflow"`
	TotalOutflow  float64 `json:"total_outflow"`
	StorageChange float64 `json:"storage_change"`
	Error         float64 `json:"error"`
	RunningError  float64 `json:"running_error"`
	Tolerance     float64 `json:"tolerance"`
	Steps         int     `json:"steps"`
	Within        bool    `json:"within_tolerance"`
}

// Run is one completed simulation.
type Run struct {
	ID          uuid.UUID   `json:"id"`
	Dataset     string      `json:"dataset"`
	SeriesHash  string      `json:"series_hash"`
	Params      Params      `json:"params"`
	Summary     Summary     `json:"summary"`
	MassBalance MassBalance `json:"mass_balance"`
	Steps       int         `json:"steps"`
	Warnings    []string    `json:"warnings,omitempty"`
	DurationMS  int64       `json:"duration_ms"`
	Cached      bool        `json:"cached"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Row is one step of the output table. FractionMet is nil when the step had
// no demand.
type Row struct {
	Time            time.Time `json:"timestamp"`
	Rainfall        float64   `json:"rainfall_mm"`
	Discharge       float64   `json:"discharge"`
	Runoff          float64   `json:"runoff"`
	Timestep        float64   `json:"timestep"`
	DemandMM        float64   `json:"demand_mm"`
	DemandVolume    float64   `json:"demand_volume"`
	Overflow        float64   `json:"overflow"`
	Harvested       float64   `json:"harvested"`
	TankVolume      float64   `json:"tank_volume"`
	DetentionVolume float64   `json:"detention_volume"`
	TankOverflow    float64   `json:"tank_overflow"`
	FractionMet     *float64  `json:"fraction_demand_met"`
	Supplied        float64   `json:"supplied"`
	CumulativeError float64   `json:"cumulative_mass_balance_error"`
}

// SimulationResponse is returned by Simulate. Series is empty unless it was
// requested.
type SimulationResponse struct {
	Run    Run   `json:"run"`
	Series []Row `json:"series,omitempty"`
}

// ListOptions pages through stored runs.
type ListOptions struct {
	Dataset string
	Limit   int
	Offset  int
}

// RunList is one page of stored runs.
type RunList struct {
	Runs    []Run
	HasMore bool
	Limit   int
	Offset  int
}

// Health is the server's health report.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Storage  string `json:"storage"`
	Cache    string `json:"cache"`
	Datasets int    `json:"datasets"`
	Uptime   int64  `json:"uptime_seconds"`
}

type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type listEnvelope struct {
	Data    []Run `json:"data"`
	HasMore bool  `json:"has_more"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
