// Package model defines the domain types shared by the simulator, its
// storage layer and its HTTP and MCP surfaces. Types are plain data with JSON
// tags; behaviour lives in the packages that compute them.
package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidInput is the root of every validation failure: bad series,
// bad parameters, bad request bodies. Callers test for it with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// DemandMode selects how irrigation demand is derived from the input series.
type DemandMode string

const (
	// DemandConstant applies a constant demand flow whenever it is not raining.
	DemandConstant DemandMode = "constant"
	// DemandEstimated schedules daily irrigation from a periodic weekly target.
	DemandEstimated DemandMode = "estimated"
)

// TargetPeriod is the calendar period irrigation targets are keyed by.
type TargetPeriod string

const (
	TargetByMonth TargetPeriod = "month"
	TargetByWeek  TargetPeriod = "week"
)

// Params is the full parameter record for one simulation. All values are
// required for the demand mode in use; nothing is defaulted silently.
type Params struct {
	TankMax      float64 `json:"tank_max"`      // m³
	TankStart    float64 `json:"tank_start"`    // m³
	PumpCapacity float64 `json:"pump_capacity"` // m³/s
	DetentionMax float64 `json:"det_max"`       // m³

	DemandMode DemandMode `json:"demand_mode"`
	Demand     float64    `json:"demand,omitempty"` // m³/s, constant mode

	// Estimated mode. Targets are weekly irrigation depths in mm keyed by
	// month (1-12) or ISO week (1-53).
	IrrigationArea    float64         `json:"irrigation_area,omitempty"` // m²
	TargetPeriod      TargetPeriod    `json:"target_period,omitempty"`
	IrrigationTargets map[int]float64 `json:"irrigation_targets,omitempty"`
}

// Validate checks the parameter record for the selected demand mode.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"tank_max", p.TankMax},
		{"tank_start", p.TankStart},
		{"pump_capacity", p.PumpCapacity},
		{"det_max", p.DetentionMax},
		{"demand", p.Demand},
		{"irrigation_area", p.IrrigationArea},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidInput, f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("%w: %s must be non-negative (got %g)", ErrInvalidInput, f.name, f.v)
		}
	}
	if p.TankStart > p.TankMax {
		return fmt.Errorf("%w: tank_start %g exceeds tank_max %g", ErrInvalidInput, p.TankStart, p.TankMax)
	}

	switch p.DemandMode {
	case DemandConstant:
	case DemandEstimated:
		if p.IrrigationArea <= 0 {
			return fmt.Errorf("%w: irrigation_area is required for estimated demand", ErrInvalidInput)
		}
		if len(p.IrrigationTargets) == 0 {
			return fmt.Errorf("%w: irrigation_targets is required for estimated demand", ErrInvalidInput)
		}
		hi := 12
		switch p.TargetPeriod {
		case TargetByMonth, "":
		case TargetByWeek:
			hi = 53
		default:
			return fmt.Errorf("%w: unknown target_period %q", ErrInvalidInput, p.TargetPeriod)
		}
		for k, v := range p.IrrigationTargets {
			if k < 1 || k > hi {
				return fmt.Errorf("%w: irrigation target key %d out of range 1-%d", ErrInvalidInput, k, hi)
			}
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: irrigation target for %d must be a non-negative number", ErrInvalidInput, k)
			}
		}
	default:
		return fmt.Errorf("%w: unknown demand_mode %q", ErrInvalidInput, p.DemandMode)
	}
	return nil
}

// Key returns the canonical parameter tuple used as a cache key component.
// Floats use the shortest exact representation so distinct values never
// collide.
func (p Params) Key() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	var b strings.Builder
	b.WriteString(string(p.DemandMode))
	for _, v := range []float64{p.TankMax, p.TankStart, p.PumpCapacity, p.DetentionMax, p.Demand, p.IrrigationArea} {
		b.WriteByte('|')
		b.WriteString(f(v))
	}
	if p.DemandMode == DemandEstimated {
		b.WriteByte('|')
		period := p.TargetPeriod
		if period == "" {
			period = TargetByMonth
		}
		b.WriteString(string(period))
		keys := make([]int, 0, len(p.IrrigationTargets))
		for k := range p.IrrigationTargets {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for _, k := range keys {
			b.WriteByte('|')
			b.WriteString(strconv.Itoa(k))
			b.WriteByte('=')
			b.WriteString(f(p.IrrigationTargets[k]))
		}
	}
	return b.String()
}
