package model

import (
	"time"
)

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for list endpoints.
type ListResponse struct {
	Data    any          `json:"data"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodePayloadTooBig = "PAYLOAD_TOO_LARGE"
	ErrCodeUnavailable   = "SERVICE_UNAVAILABLE"
)

// SimulateRequest is the request body for POST /v1/simulations.
type SimulateRequest struct {
	Dataset       string `json:"dataset"`
	Params        Params `json:"params"`
	IncludeSeries bool   `json:"include_series,omitempty"`
}

// SimulationResponse is returned by POST /v1/simulations.
type SimulationResponse struct {
	Run    Run   `json:"run"`
	Series []Row `json:"series,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Storage  string `json:"storage"`
	Cache    string `json:"cache"`
	Datasets int    `json:"datasets"`
	Uptime   int64  `json:"uptime_seconds"`
}
