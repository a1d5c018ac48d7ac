// Package summary reduces a simulated series to scalar totals.
package summary

import (
	"errors"

	"github.com/montanaflynn/stats"

	"github.com/danielcopelin/stormwater-harvesting/internal/balance"
	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

// ErrDivisionUndefined is returned when the fraction supplied has no meaning
// because there was no demand at all. The summary is still returned.
var ErrDivisionUndefined = errors.New("summary: fraction supplied is undefined: total demand is zero")

// Summarize aggregates a state history. The first state is the initial
// condition and contributes no flows.
func Summarize(states []balance.State) (model.Summary, error) {
	var s model.Summary
	if len(states) == 0 {
		return s, ErrDivisionUndefined
	}

	tank := make(stats.Float64Data, len(states))
	for i, st := range states {
		tank[i] = st.TankVolume
		if i == 0 {
			continue
		}
		s.DemandTotal += st.DemandVolume
		s.HarvestTotal += st.Supplied
		s.RunoffTotal += st.Runoff
		s.PumpedTotal += st.Harvested
		s.OverflowTotal += st.Overflow
		s.TankOverflowTotal += st.TankOverflow
		if st.FractionMet.Valid {
			s.StepsWithDemand++
			if st.FractionMet.Value == 1 {
				s.StepsDemandFullyMet++
			}
		}
	}

	// Errors from stats only signal empty input, excluded above.
	s.MeanTankVolume, _ = tank.Mean()
	s.P90TankVolume, _ = tank.Percentile(90)

	if s.DemandTotal == 0 {
		s.FractionSupplied = model.Undefined()
		return s, ErrDivisionUndefined
	}
	s.FractionSupplied = model.Defined(s.HarvestTotal / s.DemandTotal)
	return s, nil
}
