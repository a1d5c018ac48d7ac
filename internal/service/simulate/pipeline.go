package simulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielcopelin/stormwater-harvesting/internal/audit"
	"github.com/danielcopelin/stormwater-harvesting/internal/balance"
	"github.com/danielcopelin/stormwater-harvesting/internal/demand"
	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/summary"
	"github.com/danielcopelin/stormwater-harvesting/internal/timeseries"
)

// Warning texts attached to runs.
const (
	WarnFractionUndefined = "fraction supplied is undefined: total demand is zero"
	warnMassBalance       = "mass balance: "
)

// Outcome is the full result of one pipeline execution.
type Outcome struct {
	Run       model.Run
	Rows      []model.Row
	Violation *audit.MassBalanceViolation
}

// Execute runs demand estimation, the water balance, the audit and the
// summary over a validated, derived series. Only invalid input is an error:
// a mass-balance violation or an undefined supplied fraction is reported on
// the run as a warning.
func Execute(ctx context.Context, dataset string, s timeseries.Series, p model.Params, opts ...audit.Option) (Outcome, error) {
	start := time.Now()

	if err := p.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("simulate: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("simulate: %w", err)
	}

	demandMM, demandVol := demand.ForParams(s, p)
	inputs, err := balance.Inputs(s.Runoff(), demandVol, s.Timesteps())
	if err != nil {
		return Outcome{}, fmt.Errorf("simulate: %w", err)
	}
	states, err := balance.Run(ctx, balance.ConfigFrom(p), inputs)
	if err != nil {
		return Outcome{}, fmt.Errorf("simulate: %w", err)
	}

	out := Outcome{Run: model.Run{
		ID:         uuid.New(),
		Dataset:    dataset,
		SeriesHash: s.Hash(),
		Params:     p,
		Steps:      len(states),
	}}

	report, err := audit.Audit(states, opts...)
	out.Run.MassBalance = report
	if err != nil {
		if !errors.As(err, &out.Violation) {
			return Outcome{}, fmt.Errorf("simulate: %w", err)
		}
		out.Run.Warnings = append(out.Run.Warnings, warnMassBalance+out.Violation.Error())
	}

	sum, err := summary.Summarize(states)
	out.Run.Summary = sum
	if errors.Is(err, summary.ErrDivisionUndefined) {
		out.Run.Warnings = append(out.Run.Warnings, WarnFractionUndefined)
	} else if err != nil {
		return Outcome{}, fmt.Errorf("simulate: %w", err)
	}

	out.Rows = Rows(s, demandMM, states)
	out.Run.DurationMS = time.Since(start).Milliseconds()
	out.Run.CreatedAt = time.Now().UTC()
	return out, nil
}

// Rows joins the input series, demand columns and simulated states into the
// output table. All three must have the same length.
func Rows(s timeseries.Series, demandMM []float64, states []balance.State) []model.Row {
	rows := make([]model.Row, len(states))
	for i, st := range states {
		smp := s[i]
		rows[i] = model.Row{
			Time:            smp.Time,
			Rainfall:        smp.Rainfall,
			Discharge:       smp.Discharge,
			Runoff:          smp.Runoff,
			Timestep:        smp.Timestep,
			DemandMM:        demandMM[i],
			DemandVolume:    st.DemandVolume,
			Overflow:        st.Overflow,
			Harvested:       st.Harvested,
			TankVolume:      st.TankVolume,
			DetentionVolume: st.DetentionVolume,
			TankOverflow:    st.TankOverflow,
			FractionMet:     st.FractionMet,
			Supplied:        st.Supplied,
			CumulativeError: st.CumulativeError,
		}
	}
	return rows
}
