// Package harvest provides a Go client for the stormwater harvesting
// simulator API.
package harvest

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an error from the API with the HTTP status code and the
// server's error message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("harvest: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func hasStatus(err error, status int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == status
	}
	return false
}

// IsNotFound returns true if the error is a 404: an unknown dataset or run.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsInvalidInput returns true if the error is a 400.
func IsInvalidInput(err error) bool { return hasStatus(err, http.StatusBadRequest) }

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool { return hasStatus(err, http.StatusTooManyRequests) }

// IsTooLarge returns true if the error is a 413.
func IsTooLarge(err error) bool { return hasStatus(err, http.StatusRequestEntityTooLarge) }
