package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the flow client.
var (
	// ErrNotFound indicates the flow does not exist on the server.
	ErrNotFound = errors.New("flow not found on server")

	// ErrRateLimited indicates the server rejected the request with 429.
	ErrRateLimited = errors.New("flow server rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with flow server")

	// ErrInvalidResponse indicates an unexpected response body.
	ErrInvalidResponse = errors.New("invalid response from flow server")

	// ErrUnsupported is returned for operations the remote protocol lacks.
	ErrUnsupported = errors.New("operation not supported by flow server")
)

// APIError is a failure reported by the server, either as a non-2xx status
// or as {"success": false, "error": ...}.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flow server error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound returns true if the error indicates a missing flow.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// IsTransport returns true for failures of the exchange itself: network
// errors, non-2xx statuses and unparseable bodies.
func IsTransport(err error) bool {
	if errors.Is(err, ErrNetworkError) || errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400
}
