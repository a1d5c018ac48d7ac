// Package harvesting is the public API for embedding the stormwater
// harvesting simulator server.
//
// Callers import this package to construct and extend the server without
// forking it:
//
//	app, err := harvesting.New(
//	    harvesting.WithVersion(version),
//	    harvesting.WithLogger(logger),
//	    harvesting.WithDataset("creek", "dnrm", f),
//	    harvesting.WithExtraRoutes(myRoutes),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The root package imports internal/*, but internal/* never imports the root.
package harvesting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/danielcopelin/stormwater-harvesting/api"
	"github.com/danielcopelin/stormwater-harvesting/internal/config"
	"github.com/danielcopelin/stormwater-harvesting/internal/mcp"
	"github.com/danielcopelin/stormwater-harvesting/internal/ratelimit"
	"github.com/danielcopelin/stormwater-harvesting/internal/server"
	"github.com/danielcopelin/stormwater-harvesting/internal/service/simulate"
	"github.com/danielcopelin/stormwater-harvesting/internal/simcache"
	"github.com/danielcopelin/stormwater-harvesting/internal/storage"
	"github.com/danielcopelin/stormwater-harvesting/internal/telemetry"
	"github.com/danielcopelin/stormwater-harvesting/internal/timeseries"
)

// App is the simulator server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	store        storage.Store
	cache        *simcache.Cache
	limiter      ratelimit.Limiter // nil when rate limiting is disabled
	srv          *server.Server
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the server. It opens the run store, connects the cache,
// registers startup datasets and wires the HTTP and MCP surfaces. It does NOT
// accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.redisURL != "" {
		cfg.RedisURL = o.redisURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("harvestd starting", "version", version, "port", cfg.Port)

	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, telemetry.Settings{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	store, err := storage.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("storage: %w", err)
	}
	logger.Info("run store", "kind", store.Kind())

	cache, limiter, err := newCacheAndLimiter(ctx, cfg, logger)
	if err != nil {
		store.Close(ctx)
		_ = otelShutdown(ctx)
		return nil, err
	}

	app := &App{
		cfg:          cfg,
		store:        store,
		cache:        cache,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}

	svc := simulate.New(logger,
		simulate.WithStore(store),
		simulate.WithCache(cache),
		simulate.WithMassBalanceRelTol(cfg.MassBalanceRelTol),
	)
	if err := app.loadDatasets(ctx, svc, o.datasets); err != nil {
		app.close()
		return nil, err
	}

	mcpSrv := mcp.New(svc, version, logger)

	var extraRoutes []func(*http.ServeMux)
	for _, fn := range o.routeRegistrars {
		extraRoutes = append(extraRoutes, fn)
	}
	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	app.srv = server.New(server.ServerConfig{
		Svc:                 svc,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
		ExtraRoutes:         extraRoutes,
		Middlewares:         middlewares,
	})
	return app, nil
}

// newCacheAndLimiter builds the result cache and the request limiter. With
// REDIS_URL set both share one client; the cache owns it.
func newCacheAndLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (*simcache.Cache, ratelimit.Limiter, error) {
	if cfg.RedisURL == "" {
		cache := simcache.New(simcache.NewMemoryBackend(cfg.CacheTTL), logger)
		logger.Info("result cache: memory", "ttl", cfg.CacheTTL)
		if cfg.RateLimitRPS <= 0 {
			logger.Info("rate limiting: disabled")
			return cache, nil, nil
		}
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
		return cache, ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis: ping: %w", err)
	}
	cache := simcache.New(simcache.NewRedisBackendFromClient(client, cfg.CacheTTL), logger)
	logger.Info("result cache: redis", "addr", opts.Addr, "ttl", cfg.CacheTTL)

	if cfg.RateLimitRPS <= 0 {
		logger.Info("rate limiting: disabled")
		return cache, nil, nil
	}
	// A fixed window of burst requests refilled at rps approximates the
	// in-process token bucket across replicas.
	window := time.Duration(math.Ceil(float64(cfg.RateLimitBurst) / cfg.RateLimitRPS * float64(time.Second)))
	logger.Info("rate limiting: redis (fixed window)",
		"limit", cfg.RateLimitBurst, "window", window)
	return cache, ratelimit.NewRedisLimiter(client, cfg.RateLimitBurst, window), nil
}

// loadDatasets registers the configured startup series: HARVEST_DATASET_PATH
// first, then any WithDataset sources.
func (a *App) loadDatasets(ctx context.Context, svc *simulate.Service, extra []datasetSource) error {
	if a.cfg.DatasetPath != "" {
		f, err := os.Open(a.cfg.DatasetPath)
		if err != nil {
			return fmt.Errorf("dataset: %w", err)
		}
		_, err = svc.LoadDataset(ctx, a.cfg.DatasetName, f, timeseries.Format(a.cfg.DatasetFormat))
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("dataset %s: %w", a.cfg.DatasetPath, err)
		}
	}
	for _, d := range extra {
		if _, err := svc.LoadDataset(ctx, d.name, d.r, timeseries.Format(d.format)); err != nil {
			return fmt.Errorf("dataset %q: %w", d.name, err)
		}
	}
	return nil
}

// Run starts the HTTP server, then blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown has been called, so callers should
// not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.close()
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown stops accepting HTTP requests and drains in-flight ones, then
// closes the limiter, cache, store and OTEL providers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("harvestd shutting down")

	httpCtx, httpCancel := contextWithOptionalTimeout(ctx, a.cfg.ShutdownTimeout)
	err := a.srv.Shutdown(httpCtx)
	httpCancel()
	if err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	a.close()
	a.logger.Info("harvestd stopped")
	return err
}

// close releases everything New acquired. The limiter closes before the
// cache because a Redis limiter borrows the cache's client.
func (a *App) close() {
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close failed", "error", err)
	}
	a.store.Close(context.Background())
	_ = a.otelShutdown(context.Background())
}

// contextWithOptionalTimeout returns ctx unchanged when d is zero.
func contextWithOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
