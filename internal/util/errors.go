package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common failure modes
var (
	// ErrUnsupported indicates a format, kind or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoProviders indicates that no search provider is enabled
	ErrNoProviders = errors.New("no search providers enabled")

	// ErrNoResults indicates that a search produced no acceptable result
	ErrNoResults = errors.New("no acceptable results")

	// ErrAlreadySnatched indicates the result was snatched before
	ErrAlreadySnatched = errors.New("already snatched")

	// ErrRateLimited indicates the remote service asked us to slow down
	ErrRateLimited = errors.New("rate limited")

	// ErrNoClient indicates no download client handles a result kind
	ErrNoClient = errors.New("no download client configured")
)

// HTTPStatusError is returned by HTTP clients for unexpected status codes
type HTTPStatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Unwrap maps well-known status codes onto sentinel errors
func (e *HTTPStatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return ErrRateLimited
	}
	return nil
}

// Temporary reports whether the request may succeed when retried
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
