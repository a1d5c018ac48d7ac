// Package balance implements the single-tank, single-basin water balance: a
// forward fold over per-step inputs producing one State per step, each
// computed only from the previous State and the current Input.
//
// Per step, runoff first overflows whatever the detention basin and the pump
// cannot take, the pump then moves water from runoff and basin storage into
// the tank, the tank supplies the step's irrigation demand and spills anything
// above its capacity. Every volume leaving or entering storage is accounted
// for so the running mass-balance error stays at floating-point noise.
package balance

import (
	"context"
	"fmt"
	"math"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

// ErrInvalidParams is returned for parameter sets the engine cannot run.
var ErrInvalidParams = fmt.Errorf("balance: invalid parameters: %w", model.ErrInvalidInput)

// ErrInputMismatch is returned when input columns differ in length.
var ErrInputMismatch = fmt.Errorf("balance: input columns differ in length: %w", model.ErrInvalidInput)

// Config holds the physical parameters of one run.
type Config struct {
	TankMax      float64 // m³
	TankStart    float64 // m³
	PumpCapacity float64 // m³/s
	DetentionMax float64 // m³
}

// ConfigFrom extracts the engine parameters from a full parameter record.
func ConfigFrom(p model.Params) Config {
	return Config{
		TankMax:      p.TankMax,
		TankStart:    p.TankStart,
		PumpCapacity: p.PumpCapacity,
		DetentionMax: p.DetentionMax,
	}
}

// Validate checks capacities are finite and non-negative and the tank
// starts within its capacity.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"tank_max", c.TankMax},
		{"tank_start", c.TankStart},
		{"pump_capacity", c.PumpCapacity},
		{"det_max", c.DetentionMax},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%w: %s must be a finite non-negative number (got %g)", ErrInvalidParams, f.name, f.v)
		}
	}
	if c.TankStart > c.TankMax {
		return fmt.Errorf("%w: tank_start %g exceeds tank_max %g", ErrInvalidParams, c.TankStart, c.TankMax)
	}
	return nil
}

// Input is the raw forcing for one step.
type Input struct {
	Runoff       float64 // m³ arriving during the step
	DemandVolume float64 // m³ of irrigation demand during the step
	Timestep     float64 // seconds
}

// Inputs zips the per-step columns into engine inputs.
func Inputs(runoff, demandVolume, timestep []float64) ([]Input, error) {
	if len(runoff) != len(demandVolume) || len(runoff) != len(timestep) {
		return nil, fmt.Errorf("%w: runoff=%d demand=%d timestep=%d",
			ErrInputMismatch, len(runoff), len(demandVolume), len(timestep))
	}
	out := make([]Input, len(runoff))
	for i := range out {
		out[i] = Input{Runoff: runoff[i], DemandVolume: demandVolume[i], Timestep: timestep[i]}
	}
	return out, nil
}

func (in Input) validate(i int) error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"runoff", in.Runoff},
		{"demand_volume", in.DemandVolume},
		{"timestep", in.Timestep},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("balance: step %d: %s must be a finite non-negative number (got %g): %w",
				i, f.name, f.v, model.ErrInvalidInput)
		}
	}
	return nil
}

// State is the system after one step. Flow fields are volumes moved during
// the step that produced the state.
type State struct {
	Runoff          float64 // inflow this step
	DemandVolume    float64
	Overflow        float64 // runoff bypassing tank and basin
	Harvested       float64 // pumped into the tank
	TankVolume      float64
	DetentionVolume float64
	TankOverflow    float64 // rejected at the tank's capacity
	FractionMet     model.Fraction
	Supplied        float64 // FractionMet * DemandVolume, 0 when undefined
	StepError       float64
	CumulativeError float64
}

// Initial returns the state before the first step.
func Initial(c Config) State {
	return State{TankVolume: c.TankStart}
}

// Step advances prev by one input.
func Step(c Config, prev State, in Input) State {
	r := in.Runoff
	q := in.DemandVolume
	pump := c.PumpCapacity * in.Timestep
	tankRoom := c.TankMax - prev.TankVolume
	basinRoom := c.DetentionMax - prev.DetentionVolume

	next := State{Runoff: r, DemandVolume: q}

	// Detention overflow.
	switch {
	case tankRoom == 0 && basinRoom == 0:
		next.Overflow = r
	case r-pump-basinRoom < 0:
		next.Overflow = math.Max(0, r-basinRoom)
	case tankRoom == 0:
		next.Overflow = r - basinRoom
	default:
		next.Overflow = r - pump - basinRoom
	}

	// Harvest: the pump draws on this step's runoff and basin storage, less
	// whatever already overflowed.
	if tankRoom > 0 {
		available := math.Max(0, r+prev.DetentionVolume-next.Overflow)
		next.Harvested = math.Min(pump, available)
	}

	gross := prev.TankVolume + next.Harvested - q
	next.TankVolume = clamp(gross, 0, c.TankMax)
	next.DetentionVolume = clamp(r+prev.DetentionVolume-next.Harvested-next.Overflow, 0, c.DetentionMax)
	if gross > c.TankMax {
		next.TankOverflow = gross - c.TankMax
	}

	if q > 0 {
		next.FractionMet = model.Defined(math.Min(1, (prev.TankVolume+next.Harvested)/q))
		next.Supplied = next.FractionMet.Value * q
	} else {
		next.FractionMet = model.Undefined()
	}

	outflow := next.Supplied + next.Overflow + next.TankOverflow
	storage := (next.TankVolume - prev.TankVolume) + (next.DetentionVolume - prev.DetentionVolume)
	next.StepError = r - outflow - storage
	next.CumulativeError = prev.CumulativeError + next.StepError
	return next
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// defaultCheckEvery is how many steps run between cancellation checks.
const defaultCheckEvery = 4096

type options struct {
	checkEvery int
}

// Option tunes a run.
type Option func(*options)

// WithCheckEvery sets how many steps run between context checks.
func WithCheckEvery(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.checkEvery = n
		}
	}
}

// Visitor receives each state in order. Index 0 is the initial state.
// Returning an error stops the fold.
type Visitor func(i int, s State) error

// Fold runs the recurrence over inputs, calling visit for every state and
// keeping only the previous state in memory. Input 0 corresponds to the
// initial state and carries no flows. It returns the final state.
func Fold(ctx context.Context, c Config, inputs []Input, visit Visitor, opts ...Option) (State, error) {
	if err := c.Validate(); err != nil {
		return State{}, err
	}
	if len(inputs) == 0 {
		return State{}, fmt.Errorf("balance: no inputs: %w", model.ErrInvalidInput)
	}
	o := options{checkEvery: defaultCheckEvery}
	for _, fn := range opts {
		fn(&o)
	}

	cur := Initial(c)
	if err := visit(0, cur); err != nil {
		return cur, err
	}
	for i := 1; i < len(inputs); i++ {
		if i%o.checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return cur, fmt.Errorf("balance: cancelled at step %d: %w", i, err)
			}
		}
		if err := inputs[i].validate(i); err != nil {
			return cur, err
		}
		cur = Step(c, cur, inputs[i])
		if err := visit(i, cur); err != nil {
			return cur, err
		}
	}
	return cur, nil
}

// Run folds over inputs and retains the full state history.
func Run(ctx context.Context, c Config, inputs []Input, opts ...Option) ([]State, error) {
	states := make([]State, 0, len(inputs))
	_, err := Fold(ctx, c, inputs, func(_ int, s State) error {
		states = append(states, s)
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return states, nil
}
