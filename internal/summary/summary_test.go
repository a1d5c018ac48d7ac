package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielcopelin/stormwater-harvesting/internal/balance"
	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

func TestSummarize(t *testing.T) {
	states := []balance.State{
		{TankVolume: 5},
		{Runoff: 10, DemandVolume: 4, Harvested: 6, TankVolume: 7, Supplied: 4, FractionMet: model.Defined(1)},
		{Runoff: 0, DemandVolume: 8, TankVolume: 0, Supplied: 7, FractionMet: model.Defined(0.875)},
		{Runoff: 20, Overflow: 12, Harvested: 8, TankVolume: 8, FractionMet: model.Undefined()},
	}

	s, err := Summarize(states)
	require.NoError(t, err)
	assert.Equal(t, 12.0, s.DemandTotal)
	assert.Equal(t, 11.0, s.HarvestTotal)
	assert.Equal(t, model.Defined(11.0/12.0), s.FractionSupplied)
	assert.Equal(t, 30.0, s.RunoffTotal)
	assert.Equal(t, 14.0, s.PumpedTotal)
	assert.Equal(t, 12.0, s.OverflowTotal)
	assert.Equal(t, 5.0, s.MeanTankVolume)
	assert.Equal(t, 2, s.StepsWithDemand)
	assert.Equal(t, 1, s.StepsDemandFullyMet)

	m := s.Map()
	assert.Equal(t, 12.0, m["demand_total"])
	assert.Equal(t, 11.0, m["harvest_total"])
}

func TestSummarize_ZeroDemand(t *testing.T) {
	states := []balance.State{
		{TankVolume: 5},
		{Runoff: 3, TankVolume: 5, Overflow: 3},
	}

	s, err := Summarize(states)
	require.ErrorIs(t, err, ErrDivisionUndefined)
	assert.False(t, s.FractionSupplied.Valid)
	assert.Equal(t, 3.0, s.RunoffTotal, "totals are still reported")
}

func TestSummarize_Empty(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrDivisionUndefined)
}
