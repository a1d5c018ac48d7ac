// Package audit checks a simulated run for conservation of mass: total inflow
// must equal total outflow plus the change in stored volume, and the engine's
// running per-step error must agree with the batch total.
package audit

import (
	"fmt"
	"math"

	"github.com/danielcopelin/stormwater-harvesting/internal/balance"
	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

// Default tolerances. The bound applied is max(AbsTol*steps, RelTol*volume)
// where volume is the larger of total inflow and total outflow.
const (
	DefaultRelTol = 1e-6
	DefaultAbsTol = 1e-9
)

// MassBalanceViolation reports a run whose error exceeds tolerance. It is a
// diagnostic: the run's results are still returned alongside it.
type MassBalanceViolation struct {
	Magnitude float64 // batch error, m³
	Running   float64 // engine's cumulative error, m³
	Tolerance float64
}

func (v *MassBalanceViolation) Error() string {
	return fmt.Sprintf("audit: mass balance error %.6g m³ (running %.6g m³) exceeds tolerance %.3g m³",
		v.Magnitude, v.Running, v.Tolerance)
}

// Option tunes the tolerance.
type Option func(*Accumulator)

// WithRelTol overrides the relative tolerance.
func WithRelTol(tol float64) Option {
	return func(a *Accumulator) { a.relTol = tol }
}

// WithAbsTol overrides the per-step absolute tolerance.
func WithAbsTol(tol float64) Option {
	return func(a *Accumulator) { a.absTol = tol }
}

// Accumulator audits states as they are produced, so a run folded with
// balance.Fold can be checked without keeping its history.
type Accumulator struct {
	relTol, absTol float64

	n       int
	first   balance.State
	last    balance.State
	inflow  float64
	outflow float64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator(opts ...Option) *Accumulator {
	a := &Accumulator{relTol: DefaultRelTol, absTol: DefaultAbsTol}
	for _, fn := range opts {
		fn(a)
	}
	return a
}

// Add records the next state. The first state added is the initial storage.
func (a *Accumulator) Add(s balance.State) {
	if a.n == 0 {
		a.first = s
	} else {
		a.inflow += s.Runoff
		a.outflow += s.Supplied + s.Overflow + s.TankOverflow
	}
	a.last = s
	a.n++
}

// Visit adapts Add to balance.Visitor.
func (a *Accumulator) Visit(_ int, s balance.State) error {
	a.Add(s)
	return nil
}

// Report computes the batch balance. The returned error is a
// *MassBalanceViolation when the balance is out of tolerance, or nil.
func (a *Accumulator) Report() (model.MassBalanceReport, error) {
	storage := (a.last.TankVolume + a.last.DetentionVolume) - (a.first.TankVolume + a.first.DetentionVolume)
	r := model.MassBalanceReport{
		TotalInflow:   a.inflow,
		TotalOutflow:  a.outflow,
		StorageChange: storage,
		Error:         a.inflow - a.outflow - storage,
		RunningError:  a.last.CumulativeError,
		Steps:         a.n,
	}
	r.Tolerance = math.Max(a.absTol*float64(a.n), a.relTol*math.Max(a.inflow, a.outflow))
	r.Within = math.Abs(r.Error) <= r.Tolerance && math.Abs(r.Error-r.RunningError) <= r.Tolerance
	if !r.Within {
		return r, &MassBalanceViolation{Magnitude: r.Error, Running: r.RunningError, Tolerance: r.Tolerance}
	}
	return r, nil
}

// Audit checks a completed state history.
func Audit(states []balance.State, opts ...Option) (model.MassBalanceReport, error) {
	if len(states) == 0 {
		return model.MassBalanceReport{}, fmt.Errorf("audit: no states: %w", model.ErrInvalidInput)
	}
	a := NewAccumulator(opts...)
	for _, s := range states {
		a.Add(s)
	}
	return a.Report()
}
