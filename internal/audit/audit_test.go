package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielcopelin/stormwater-harvesting/internal/balance"
	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

func simulate(t *testing.T) []balance.State {
	t.Helper()
	c := balance.Config{TankMax: 20, TankStart: 5, PumpCapacity: 0.01, DetentionMax: 10}
	in := []balance.Input{
		{},
		{Runoff: 50, DemandVolume: 2, Timestep: 3600},
		{Runoff: 0, DemandVolume: 8, Timestep: 3600},
		{Runoff: 3, DemandVolume: 0, Timestep: 3600},
		{Runoff: 0, DemandVolume: 30, Timestep: 3600},
	}
	states, err := balance.Run(context.Background(), c, in)
	require.NoError(t, err)
	return states
}

func TestAudit_EngineRunIsWithinTolerance(t *testing.T) {
	states := simulate(t)

	r, err := Audit(states)
	require.NoError(t, err)
	assert.True(t, r.Within)
	assert.Equal(t, len(states), r.Steps)
	assert.Equal(t, 53.0, r.TotalInflow)
	assert.InDelta(t, 0, r.Error, 1e-9)
	assert.InDelta(t, r.Error, r.RunningError, 1e-9)

	last := states[len(states)-1]
	assert.InDelta(t, last.TankVolume+last.DetentionVolume-5, r.StorageChange, 1e-12)
}

func TestAudit_DetectsViolation(t *testing.T) {
	states := simulate(t)
	// Lose a cubic metre from the books without touching storage.
	states[2].Overflow += 1

	r, err := Audit(states)
	require.Error(t, err)
	assert.False(t, r.Within)

	var v *MassBalanceViolation
	require.True(t, errors.As(err, &v))
	assert.InDelta(t, -1, v.Magnitude, 1e-9)
	assert.Equal(t, r.Tolerance, v.Tolerance)
	assert.Contains(t, err.Error(), "exceeds tolerance")
}

func TestAudit_RunningErrorDisagreement(t *testing.T) {
	states := simulate(t)
	states[len(states)-1].CumulativeError = 0.5

	_, err := Audit(states)
	var v *MassBalanceViolation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, 0.5, v.Running)
}

func TestAudit_Tolerance(t *testing.T) {
	states := simulate(t)

	r, err := Audit(states, WithRelTol(0.1))
	require.NoError(t, err)
	assert.InDelta(t, 0.1*r.TotalOutflow, r.Tolerance, 1e-9, "outflow exceeds inflow here")

	r, err = Audit([]balance.State{{TankVolume: 1}, {TankVolume: 1}}, WithAbsTol(0.25))
	require.NoError(t, err)
	assert.Equal(t, 0.5, r.Tolerance)
}

func TestAudit_Empty(t *testing.T) {
	_, err := Audit(nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestAccumulator_MatchesAudit(t *testing.T) {
	states := simulate(t)
	want, err := Audit(states)
	require.NoError(t, err)

	acc := NewAccumulator()
	for i, s := range states {
		require.NoError(t, acc.Visit(i, s))
	}
	got, err := acc.Report()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
