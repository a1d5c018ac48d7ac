package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/service/simulate"
	"github.com/danielcopelin/stormwater-harvesting/internal/storage"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	svc                 *simulate.Service
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional: OpenAPISpec.
type HandlersDeps struct {
	Svc                 *simulate.Service
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		svc:                 d.Svc,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleHealth handles GET /health. Storage or cache trouble reports 503.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.svc.Check(r.Context())

	resp := model.HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Storage:  health.Storage,
		Cache:    health.Cache,
		Datasets: health.Datasets,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}
	status := http.StatusOK
	if err != nil {
		h.logger.Warn("health check failed", "error", err)
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// writeServiceError maps service errors onto the API's error codes.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		writeError(w, r, http.StatusRequestEntityTooLarge, model.ErrCodePayloadTooBig,
			fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit))
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
	default:
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	}
}

// --- Shared helpers ---

func parseRunID(r *http.Request) (uuid.UUID, error) {
	idStr := r.PathValue("id")
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("id is required")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %s", idStr)
	}
	return id, nil
}

// maxQueryLimit is the maximum allowed value for limit query parameters.
const maxQueryLimit = 1000

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// maxQueryOffset prevents absurdly large offset values that cause expensive sequential scans.
const maxQueryOffset = 100_000

// queryOffset returns a bounded, non-negative offset from query params.
func queryOffset(r *http.Request) int {
	return min(max(queryInt(r, "offset", 0), 0), maxQueryOffset)
}

// queryLimit returns a limit clamped to [1, maxQueryLimit].
func queryLimit(r *http.Request, defaultVal int) int {
	return min(max(queryInt(r, "limit", defaultVal), 1), maxQueryLimit)
}
