package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

func newLite(t *testing.T) *Lite {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l, err := OpenLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close(context.Background()) })
	return l
}

func sampleRun(dataset string, at time.Time) model.Run {
	return model.Run{
		ID:         uuid.New(),
		Dataset:    dataset,
		SeriesHash: "v1:deadbeef",
		Params: model.Params{
			TankMax: 100, TankStart: 10, PumpCapacity: 0.05, DetentionMax: 20,
			DemandMode: model.DemandEstimated, IrrigationArea: 5000,
			TargetPeriod: model.TargetByMonth, IrrigationTargets: map[int]float64{1: 30, 7: 12.5},
		},
		Summary: model.Summary{
			DemandTotal: 10, HarvestTotal: 7.5, FractionSupplied: model.Defined(0.75),
			P90TankVolume: 80,
		},
		MassBalance: model.MassBalanceReport{TotalInflow: 100, Within: true, Steps: 12},
		Steps:       12,
		Warnings:    []string{"something odd"},
		DurationMS:  3,
		CreatedAt:   at,
	}
}

func TestLite_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	l := newLite(t)

	run := sampleRun("site-a", time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC))
	require.NoError(t, l.SaveRun(ctx, run))

	got, err := l.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Params, got.Params)
	assert.Equal(t, run.Summary, got.Summary)
	assert.Equal(t, run.MassBalance, got.MassBalance)
	assert.Equal(t, run.Warnings, got.Warnings)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
}

func TestLite_UndefinedFractionSurvives(t *testing.T) {
	ctx := context.Background()
	l := newLite(t)

	run := sampleRun("site-a", time.Now())
	run.Summary.FractionSupplied = model.Undefined()
	run.Warnings = nil
	require.NoError(t, l.SaveRun(ctx, run))

	got, err := l.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, got.Summary.FractionSupplied.Valid)
	assert.Empty(t, got.Warnings)
}

func TestLite_GetMissing(t *testing.T) {
	_, err := newLite(t).GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLite_ListRuns(t *testing.T) {
	ctx := context.Background()
	l := newLite(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := range 5 {
		ds := "site-a"
		if i%2 == 1 {
			ds = "site-b"
		}
		// Whole seconds and fractional seconds mixed to check ordering.
		r := sampleRun(ds, base.Add(time.Duration(i)*1500*time.Millisecond))
		ids = append(ids, r.ID)
		require.NoError(t, l.SaveRun(ctx, r))
	}

	all, total, err := l.ListRuns(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, all, 5)
	assert.Equal(t, ids[4], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[4].ID)

	a, total, err := l.ListRuns(ctx, "site-a", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, a, 2)
	assert.Equal(t, ids[4], a[0].ID)
	assert.Equal(t, ids[2], a[1].ID)

	a, _, err = l.ListRuns(ctx, "site-a", 2, 2)
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, ids[0], a[0].ID)
}

func TestOpen_PicksSQLiteForPaths(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "x.db"), logger)
	require.NoError(t, err)
	defer s.Close(context.Background())
	assert.Equal(t, "sqlite", s.Kind())
	assert.NoError(t, s.Ping(context.Background()))
}
