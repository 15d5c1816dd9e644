package plantapi

import (
	"errors"
	"fmt"
)

// HTTPError is a non-retryable response status from the API
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// TransportError is returned once retries are exhausted on timeouts,
// connection failures, rate limiting or server errors
type TransportError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("max retries exceeded for %s after %d attempts: %v", e.Path, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is an exhausted-retry transport failure
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsHTTPError reports whether err carries a non-retryable HTTP status
func IsHTTPError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}
