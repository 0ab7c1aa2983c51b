// Package dispatch executes chat requests against the best available
// provider with automatic failover.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransportError wraps a connection-level or timeout failure for one
// provider attempt.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %s: transport failure: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx response from a provider. Body holds a
// truncated copy of the response for diagnostics; credentials never appear
// in it because they travel only in request headers.
type HTTPStatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("provider %s: http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ParseError reports a response body that did not match the provider's
// declared parser format.
type ParseError struct {
	Provider string
	Format   string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %s: parse %s response: %v", e.Provider, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RenderError reports a template that could not be fully rendered; a
// placeholder survived substitution.
type RenderError struct {
	Provider    string
	Placeholder string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("provider %s: unresolved placeholder %s in template", e.Provider, e.Placeholder)
}

// Attempt records the outcome of trying one provider during a dispatch.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError is returned when every candidate provider failed. It
// carries one entry per attempted provider, in attempt order, so callers
// can tell a total outage apart from a misconfiguration.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no providers available (all disabled or cooling down)"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %s", a.Provider, errorKind(a.Err))
	}
	return fmt.Sprintf("all %d providers exhausted (%s)", len(e.Attempts), strings.Join(parts, ", "))
}

// errorKind classifies an attempt error into a short label used for
// metrics and the request log.
func errorKind(err error) string {
	if err == nil {
		return ""
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return "auth"
		case statusErr.StatusCode == http.StatusPaymentRequired:
			return "quota_exceeded"
		case statusErr.StatusCode >= 500:
			return "server_error"
		default:
			return "client_error"
		}
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}

	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return "template"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return "network"
	}

	return "unknown"
}
