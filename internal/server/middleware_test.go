package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/testutil"
)

func TestRecoveryMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := requestIDMiddleware(recoveryMiddleware(testutil.DiscardLogger(), inner))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, model.ErrCodeInternalError, apiErr.Error.Code)
	assert.NotEmpty(t, apiErr.Meta.RequestID)
}

func TestRecoveryMiddleware_AbortHandlerPropagates(t *testing.T) {
	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})
	handler := recoveryMiddleware(testutil.DiscardLogger(), inner)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "generated when absent", header: "", keep: false},
		{name: "client id kept", header: "abc-123", keep: true},
		{name: "oversized id replaced", header: strings.Repeat("x", maxRequestIDLen+1), keep: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
			if tt.keep {
				assert.Equal(t, tt.header, seen)
			} else {
				assert.NotEqual(t, tt.header, seen)
				assert.LessOrEqual(t, len(seen), maxRequestIDLen)
			}
		})
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	var wrapped *statusWriter
	handler := loggingMiddleware(testutil.DiscardLogger(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		wrapped, _ = w.(*statusWriter)
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, wrapped)
	assert.Equal(t, http.StatusTeapot, wrapped.statusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, rec, wrapped.Unwrap())
}

func TestWriteListJSON_HasMore(t *testing.T) {
	tests := []struct {
		total, limit, offset int
		hasMore              bool
	}{
		{total: 10, limit: 5, offset: 0, hasMore: true},
		{total: 10, limit: 5, offset: 5, hasMore: false},
		{total: 0, limit: 50, offset: 0, hasMore: false},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeListJSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), []int{}, tt.total, tt.limit, tt.offset)

		var resp struct {
			HasMore bool `json:"has_more"`
			Limit   int  `json:"limit"`
			Offset  int  `json:"offset"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tt.hasMore, resp.HasMore, "total=%d limit=%d offset=%d", tt.total, tt.limit, tt.offset)
		assert.Equal(t, tt.limit, resp.Limit)
		assert.Equal(t, tt.offset, resp.Offset)
	}
}

func TestQueryLimitAndOffset(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5000&offset=-3", nil)
	assert.Equal(t, maxQueryLimit, queryLimit(req, 50))
	assert.Equal(t, 0, queryOffset(req))

	req = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	assert.Equal(t, 50, queryLimit(req, 50))
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"dataset":"a","extra":true}`))
	var body model.SimulateRequest
	assert.Error(t, decodeJSON(req, &body))
}
