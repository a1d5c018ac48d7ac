package harvesting

import "net/http"

// RouteRegistrar registers additional routes on the shared HTTP mux. Routes
// added this way get request IDs, tracing, logging and panic recovery like
// the built-in ones. It is called once during New, after the built-in routes.
type RouteRegistrar func(mux *http.ServeMux)

// Middleware wraps the root HTTP handler. It runs before routing, so it sees
// every request including /health. Middlewares apply in registration order:
// the first registered is outermost.
type Middleware func(http.Handler) http.Handler
