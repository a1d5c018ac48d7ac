package simulate

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/simcache"
	"github.com/danielcopelin/stormwater-harvesting/internal/storage"
	"github.com/danielcopelin/stormwater-harvesting/internal/timeseries"
)

var t0 = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// hourly builds a derived hourly series; rainfall is 0 except where given.
func hourly(discharge []float64, rain map[int]float64) timeseries.Series {
	s := make(timeseries.Series, len(discharge))
	for i, q := range discharge {
		s[i] = timeseries.Sample{Time: t0.Add(time.Duration(i) * time.Hour), Discharge: q, Rainfall: rain[i]}
	}
	return s.Derive(true)
}

func constantParams(demand float64) model.Params {
	return model.Params{
		TankMax: 50, TankStart: 10, PumpCapacity: 0.002, DetentionMax: 20,
		DemandMode: model.DemandConstant, Demand: demand,
	}
}

func newService(t *testing.T) (*Service, *simcache.MemoryBackend) {
	t.Helper()
	logger := discardLogger()
	store, err := storage.OpenLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })

	mem := simcache.NewMemoryBackend(0)
	cache := simcache.New(mem, logger)
	t.Cleanup(func() { _ = cache.Close() })

	return New(logger, WithStore(store), WithCache(cache)), mem
}

func TestExecute(t *testing.T) {
	s := hourly([]float64{0, 0.01, 0.02, 0.005, 0}, map[int]float64{2: 3})

	out, err := Execute(context.Background(), "creek", s, constantParams(0.0001))
	require.NoError(t, err)
	require.Len(t, out.Rows, len(s))
	assert.Nil(t, out.Violation)
	assert.Empty(t, out.Run.Warnings)
	assert.True(t, out.Run.MassBalance.Within)
	assert.Equal(t, s.Hash(), out.Run.SeriesHash)
	assert.Equal(t, "creek", out.Run.Dataset)
	assert.NotEqual(t, uuid.Nil, out.Run.ID)

	// Demand only while dry: row 2 is wet, so its demand uses the trapezoid
	// of the dry half only.
	assert.InDelta(t, 0.36, out.Rows[1].DemandVolume, 1e-12)
	assert.InDelta(t, 0.18, out.Rows[2].DemandVolume, 1e-12)
	assert.True(t, out.Run.Summary.FractionSupplied.Valid)

	var runoff float64
	for _, r := range out.Rows {
		runoff += r.Runoff
	}
	assert.InDelta(t, runoff, out.Run.Summary.RunoffTotal, 1e-9)
}

func TestExecute_ZeroDemandWarns(t *testing.T) {
	s := hourly([]float64{0, 0.01, 0}, nil)

	out, err := Execute(context.Background(), "creek", s, constantParams(0))
	require.NoError(t, err)
	assert.Contains(t, out.Run.Warnings, WarnFractionUndefined)
	assert.False(t, out.Run.Summary.FractionSupplied.Valid)
	for _, r := range out.Rows {
		assert.False(t, r.FractionMet.Valid)
	}
}

func TestExecute_InvalidInput(t *testing.T) {
	ctx := context.Background()
	s := hourly([]float64{0, 1}, nil)

	bad := constantParams(0)
	bad.TankStart = 100
	_, err := Execute(ctx, "x", s, bad)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = Execute(ctx, "x", timeseries.Series{}, constantParams(0))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestService_SimulateCachesAndPersists(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.RegisterDataset(ctx, "creek", hourly([]float64{0, 0.01, 0.02, 0}, nil))
	require.NoError(t, err)

	first, err := svc.Simulate(ctx, "creek", constantParams(0.0001), true)
	require.NoError(t, err)
	assert.False(t, first.Run.Cached)
	assert.Len(t, first.Series, 4)

	second, err := svc.Simulate(ctx, "creek", constantParams(0.0001), false)
	require.NoError(t, err)
	assert.True(t, second.Run.Cached)
	assert.Equal(t, first.Run.ID, second.Run.ID)
	assert.Nil(t, second.Series)

	stored, err := svc.GetRun(ctx, first.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Run.Summary, stored.Summary)

	runs, total, err := svc.ListRuns(ctx, "creek", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "cache hits are not persisted again")
	assert.Len(t, runs, 1)
}

func TestService_ReRegisterInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t)

	_, err := svc.RegisterDataset(ctx, "creek", hourly([]float64{0, 0.01, 0}, nil))
	require.NoError(t, err)
	_, err = svc.Simulate(ctx, "creek", constantParams(0), false)
	require.NoError(t, err)
	require.Equal(t, 1, mem.Len())

	// Same content: cache survives.
	_, err = svc.RegisterDataset(ctx, "creek", hourly([]float64{0, 0.01, 0}, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Len())

	_, err = svc.RegisterDataset(ctx, "creek", hourly([]float64{0, 0.03, 0}, nil))
	require.NoError(t, err)
	assert.Equal(t, 0, mem.Len())

	resp, err := svc.Simulate(ctx, "creek", constantParams(0), false)
	require.NoError(t, err)
	assert.False(t, resp.Run.Cached)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Simulate(ctx, "nope", constantParams(0), false)
	assert.ErrorIs(t, err, ErrDatasetNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.RegisterDataset(ctx, "", hourly([]float64{0}, nil))
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.RegisterDataset(ctx, "creek", hourly([]float64{0, 1}, nil))
	require.NoError(t, err)
	p := constantParams(0)
	p.DemandMode = "sometimes"
	_, err = svc.Simulate(ctx, "creek", p, false)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestService_LoadDatasetAndList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	csv := "timestamp,rainfall_mm,discharge\n" +
		"2018-01-01 00:00,0,0\n" +
		"2018-01-01 01:00,1.5,0.02\n"
	d, err := svc.LoadDataset(ctx, "b", strings.NewReader(csv), timeseries.FormatTable)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Rows)

	_, err = svc.RegisterDataset(ctx, "a", hourly([]float64{0, 0}, nil))
	require.NoError(t, err)

	names := []string{}
	for _, d := range svc.Datasets() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = svc.LoadDataset(ctx, "c", strings.NewReader("nonsense"), timeseries.FormatTable)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestService_WithoutCollaborators(t *testing.T) {
	ctx := context.Background()
	svc := New(discardLogger())

	_, err := svc.RegisterDataset(ctx, "creek", hourly([]float64{0, 0.01}, nil))
	require.NoError(t, err)
	resp, err := svc.Simulate(ctx, "creek", constantParams(0), false)
	require.NoError(t, err)
	assert.False(t, resp.Run.Cached)

	runs, total, err := svc.ListRuns(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Zero(t, total)

	h, err := svc.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, Health{Storage: "none", Cache: "none", Datasets: 1}, h)
}

func TestService_Check(t *testing.T) {
	svc, _ := newService(t)
	h, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", h.Storage)
	assert.Equal(t, "memory", h.Cache)
}
