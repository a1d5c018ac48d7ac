package harvesting

import (
	"io"
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	redisURL        string
	logger          *slog.Logger
	version         string
	datasets        []datasetSource
	routeRegistrars []RouteRegistrar
	middlewares     []Middleware
}

type datasetSource struct {
	name   string
	format string
	r      io.Reader
}

// WithPort overrides the TCP port from config (HARVEST_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the run store from config (DATABASE_URL env var).
// A postgres:// URL selects Postgres; anything else is a SQLite file path.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithRedisURL overrides the result cache from config (REDIS_URL env var).
// When set, the cache and the rate limiter are shared through Redis.
func WithRedisURL(url string) Option {
	return func(o *resolvedOptions) { o.redisURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithDataset registers a series at startup, read from r in format ("table"
// or "dnrm"). It is read during New. Multiple datasets may be registered.
func WithDataset(name, format string, r io.Reader) Option {
	return func(o *resolvedOptions) {
		o.datasets = append(o.datasets, datasetSource{name: name, format: format, r: r})
	}
}

// WithExtraRoutes registers additional routes on the shared HTTP mux.
// Multiple registrars may be registered; all are called in registration order.
func WithExtraRoutes(fn RouteRegistrar) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
