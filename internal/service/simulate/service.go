// Package simulate is the simulation service shared by the HTTP API, the MCP
// tools and the CLI. It keeps the registry of named input series, fronts the
// pipeline with the result cache and persists completed runs.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielcopelin/stormwater-harvesting/internal/audit"
	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/simcache"
	"github.com/danielcopelin/stormwater-harvesting/internal/storage"
	"github.com/danielcopelin/stormwater-harvesting/internal/telemetry"
	"github.com/danielcopelin/stormwater-harvesting/internal/timeseries"
)

// ErrDatasetNotFound is returned for simulations against an unregistered
// dataset name.
var ErrDatasetNotFound = fmt.Errorf("simulate: unknown dataset: %w", storage.ErrNotFound)

type registered struct {
	meta   model.Dataset
	series timeseries.Series
}

// Service encapsulates simulation logic shared by HTTP, MCP and the CLI.
type Service struct {
	store  storage.Store // nil: runs are not persisted
	cache  *simcache.Cache
	logger *slog.Logger
	relTol float64
	tracer trace.Tracer

	mu       sync.RWMutex
	datasets map[string]registered

	runs       metric.Int64Counter
	cacheHits  metric.Int64Counter
	violations metric.Int64Counter
	duration   metric.Float64Histogram
}

// Option configures a Service.
type Option func(*Service)

// WithStore persists every computed run.
func WithStore(store storage.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithCache memoises results.
func WithCache(c *simcache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMassBalanceRelTol overrides the auditor's relative tolerance.
func WithMassBalanceRelTol(tol float64) Option {
	return func(s *Service) {
		if tol > 0 {
			s.relTol = tol
		}
	}
}

// New creates a Service. Without WithStore or WithCache it computes every
// request afresh and keeps nothing but the dataset registry.
func New(logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		logger:   logger,
		relTol:   audit.DefaultRelTol,
		tracer:   telemetry.Tracer("harvest/simulate"),
		datasets: make(map[string]registered),
	}
	for _, fn := range opts {
		fn(s)
	}

	meter := telemetry.Meter("harvest/simulate")
	s.runs, _ = meter.Int64Counter("harvest.simulations",
		metric.WithDescription("Simulations requested"))
	s.cacheHits, _ = meter.Int64Counter("harvest.simulations.cache_hits",
		metric.WithDescription("Simulations served from cache"))
	s.violations, _ = meter.Int64Counter("harvest.mass_balance.violations",
		metric.WithDescription("Runs whose mass balance error exceeded tolerance"))
	s.duration, _ = meter.Float64Histogram("harvest.simulation.duration",
		metric.WithDescription("Time to compute a simulation (ms)"),
		metric.WithUnit("ms"))
	return s
}

// RegisterDataset validates s and stores it under name. Replacing a name with
// different content drops every cached result of the old content.
func (s *Service) RegisterDataset(ctx context.Context, name string, series timeseries.Series) (model.Dataset, error) {
	if name == "" {
		return model.Dataset{}, fmt.Errorf("simulate: dataset name is required: %w", model.ErrInvalidInput)
	}
	if err := series.Validate(); err != nil {
		return model.Dataset{}, fmt.Errorf("simulate: dataset %q: %w", name, err)
	}

	meta := series.Describe(name)
	meta.RegisteredAt = time.Now().UTC()

	s.mu.Lock()
	old, existed := s.datasets[name]
	s.datasets[name] = registered{meta: meta, series: series}
	s.mu.Unlock()

	if existed && old.meta.Hash != meta.Hash && s.cache != nil {
		if err := s.cache.InvalidateSeries(ctx, old.meta.Hash); err != nil {
			s.logger.Warn("simulate: cache invalidation failed", "dataset", name, "error", err)
		}
	}
	s.logger.Info("dataset registered", "dataset", name, "rows", meta.Rows, "content_hash", meta.Hash, "replaced", existed)
	return meta, nil
}

// LoadDataset parses r in format and registers the result.
func (s *Service) LoadDataset(ctx context.Context, name string, r io.Reader, format timeseries.Format) (model.Dataset, error) {
	series, err := timeseries.Read(r, format)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("simulate: dataset %q: %w", name, err)
	}
	return s.RegisterDataset(ctx, name, series)
}

// Datasets lists registered datasets by name.
func (s *Service) Datasets() []model.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Dataset, 0, len(s.datasets))
	for _, d := range s.datasets {
		out = append(out, d.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) dataset(name string) (registered, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.datasets[name]
	return d, ok
}

// Simulate runs params against a registered dataset. The series is included
// in the response only when includeSeries is set.
func (s *Service) Simulate(ctx context.Context, dataset string, p model.Params, includeSeries bool) (model.SimulationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "simulate.Simulate", trace.WithAttributes(
		attribute.String("harvest.dataset", dataset),
		attribute.String("harvest.demand_mode", string(p.DemandMode)),
	))
	defer span.End()

	d, ok := s.dataset(dataset)
	if !ok {
		return model.SimulationResponse{}, fmt.Errorf("%w: %q", ErrDatasetNotFound, dataset)
	}
	if err := p.Validate(); err != nil {
		return model.SimulationResponse{}, fmt.Errorf("simulate: %w", err)
	}
	s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("dataset", dataset)))

	compute := func(ctx context.Context) (model.SimulationResponse, error) {
		return s.compute(ctx, dataset, d.series, p)
	}

	var (
		resp   model.SimulationResponse
		cached bool
		err    error
	)
	if s.cache != nil {
		resp, cached, err = s.cache.Do(ctx, d.meta.Hash, p, compute)
	} else {
		resp, err = compute(ctx)
	}
	if err != nil {
		span.RecordError(err)
		return model.SimulationResponse{}, err
	}

	if cached {
		s.cacheHits.Add(ctx, 1)
		resp.Run.Cached = true
	}
	span.SetAttributes(
		attribute.Bool("harvest.cached", cached),
		attribute.Int("harvest.steps", resp.Run.Steps),
	)
	if !includeSeries {
		resp.Series = nil
	}
	return resp, nil
}

// compute runs the pipeline and persists the run. Persistence failures are
// logged; the result is still returned.
func (s *Service) compute(ctx context.Context, dataset string, series timeseries.Series, p model.Params) (model.SimulationResponse, error) {
	start := time.Now()
	out, err := Execute(ctx, dataset, series, p, audit.WithRelTol(s.relTol))
	s.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		return model.SimulationResponse{}, err
	}

	if out.Violation != nil {
		s.violations.Add(ctx, 1)
		s.logger.Warn("mass balance violation",
			"dataset", dataset,
			"error_m3", out.Violation.Magnitude,
			"running_m3", out.Violation.Running,
			"tolerance_m3", out.Violation.Tolerance,
		)
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, out.Run); err != nil {
			s.logger.Error("simulate: persist run", "run_id", out.Run.ID, "error", err)
		}
	}

	s.logger.Info("simulation complete",
		"dataset", dataset,
		"run_id", out.Run.ID,
		"steps", out.Run.Steps,
		"duration_ms", out.Run.DurationMS,
		"warnings", len(out.Run.Warnings),
	)
	return model.SimulationResponse{Run: out.Run, Series: out.Rows}, nil
}

// GetRun returns a persisted run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (model.Run, error) {
	if s.store == nil {
		return model.Run{}, fmt.Errorf("simulate: run %s: %w", id, storage.ErrNotFound)
	}
	return s.store.GetRun(ctx, id)
}

// ListRuns returns persisted runs newest first, optionally for one dataset.
func (s *Service) ListRuns(ctx context.Context, dataset string, limit, offset int) ([]model.Run, int, error) {
	if s.store == nil {
		return nil, 0, nil
	}
	return s.store.ListRuns(ctx, dataset, limit, offset)
}

// Health reports the state of the collaborators. A nil error means the
// service can take requests.
type Health struct {
	Storage  string
	Cache    string
	Datasets int
}

// Check pings the store and the cache.
func (s *Service) Check(ctx context.Context) (Health, error) {
	h := Health{Storage: "none", Cache: "none"}
	s.mu.RLock()
	h.Datasets = len(s.datasets)
	s.mu.RUnlock()

	var errs []error
	if s.store != nil {
		h.Storage = s.store.Kind()
		if err := s.store.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
			h.Storage += " (unreachable)"
		}
	}
	if s.cache != nil {
		h.Cache = s.cache.Name()
		if err := s.cache.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
			h.Cache += " (unreachable)"
		}
	}
	return h, errors.Join(errs...)
}
