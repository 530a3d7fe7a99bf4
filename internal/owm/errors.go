package owm

import (
	"errors"
	"fmt"
)

// Sentinel errors for upstream failures that must never be retried. 404
// means the city does not exist, 401 means the key is bad, and 429 means the
// caller-side rate limiter is misconfigured, since admission should have
// prevented the call.
var (
	ErrCityNotFound = errors.New("owm: city not found")
	ErrUnauthorized = errors.New("owm: invalid API key")
	ErrRateLimited  = errors.New("owm: upstream rate limit exceeded")
)

// UpstreamError reports a non-2xx status outside the mapped 4xx set.
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("owm: unexpected status %s", e.Status)
}

// MalformedResponseError reports a 2xx payload that failed to decode or
// violated the measurement schema. Not transient, never retried.
type MalformedResponseError struct {
	City string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("owm: malformed response for %q: %v", e.City, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// TransportError reports a transient network failure that survived all retry
// attempts.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("owm: request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
