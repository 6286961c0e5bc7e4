package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// Provider failure classes. ErrRateLimit and ErrTransient are retried,
// everything else fails the call immediately.
var (
	ErrAuth      = errors.New("ai provider authentication failed")
	ErrRateLimit = errors.New("ai provider rate limit exceeded")
	ErrResponse  = errors.New("ai provider returned an invalid response")
	ErrRequest   = errors.New("ai provider rejected the request")
	ErrTransient = errors.New("ai provider temporarily unavailable")
)

// ProviderError wraps an adapter error with its failure class.
type ProviderError struct {
	Kind       error
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

// Is lets errors.Is match both the kind and the wrapped error.
func (e *ProviderError) Is(target error) bool {
	return target == e.Kind
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider string, kind error, status int, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, StatusCode: status, Err: err}
}

// ClassifyStatus maps an HTTP status code onto a failure class.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status == http.StatusRequestTimeout || status >= 500:
		return ErrTransient
	case status >= 400:
		return ErrRequest
	default:
		return ErrTransient
	}
}

// IsRetryable reports whether err should be retried with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTransient)
}

// Kind returns a short label for metrics.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrResponse):
		return "response"
	case errors.Is(err, ErrRequest):
		return "request"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}
