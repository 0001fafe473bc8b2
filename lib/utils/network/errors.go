package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// NetworkError represents categorized network errors
type NetworkError struct {
	Type    NetworkErrorType
	Message string
	Err     error
}

type NetworkErrorType string

const (
	ErrorTypeTimeout     NetworkErrorType = "timeout"
	ErrorTypeConnection  NetworkErrorType = "connection"
	ErrorTypeServerError NetworkErrorType = "server_error"
	ErrorTypeCloudflare  NetworkErrorType = "cloudflare"
	ErrorTypeCancelled   NetworkErrorType = "cancelled"
	ErrorTypeUnknown     NetworkErrorType = "unknown"
)

// HttpStatusError is returned for 5xx responses that carry no usable body
type HttpStatusError struct {
	StatusCode int
	Status     string
}

func (e *HttpStatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d (%s)", e.StatusCode, e.Status)
}

// UnexpectedContentError is returned when a JSON API answers with something
// else, typically a Cloudflare HTML challenge or error page
type UnexpectedContentError struct {
	StatusCode  int
	ContentType string
}

func (e *UnexpectedContentError) Error() string {
	return fmt.Sprintf("unexpected content type %q (status %d)", e.ContentType, e.StatusCode)
}

// CategorizeNetworkError analyzes an error and returns a NetworkError with appropriate category
func CategorizeNetworkError(err error) *NetworkError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &NetworkError{Type: ErrorTypeCancelled, Message: "Request cancelled", Err: err}
	}

	var contentErr *UnexpectedContentError
	if errors.As(err, &contentErr) {
		return &NetworkError{Type: ErrorTypeCloudflare, Message: "Unexpected content", Err: err}
	}

	var statusErr *HttpStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode >= 500 {
		return &NetworkError{Type: ErrorTypeServerError, Message: "Server error", Err: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &NetworkError{Type: ErrorTypeTimeout, Message: "Request timed out", Err: err}
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return &NetworkError{Type: ErrorTypeTimeout, Message: "Request timed out", Err: err}
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "connection closed") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "unexpected eof") ||
		strings.Contains(errStr, "network is unreachable") {
		return &NetworkError{Type: ErrorTypeConnection, Message: "Connection error", Err: err}
	}

	return &NetworkError{Type: ErrorTypeUnknown, Message: "Network error", Err: err}
}

// ShouldRetry reports whether err belongs to the transient failure class:
// timeouts, connection errors, 5xx and Cloudflare pages
func ShouldRetry(err error) bool {
	netErr := CategorizeNetworkError(err)
	if netErr == nil {
		return false
	}
	switch netErr.Type {
	case ErrorTypeTimeout, ErrorTypeConnection, ErrorTypeServerError, ErrorTypeCloudflare:
		return true
	default:
		return false
	}
}

// Unwrap implements the unwrap interface for error wrapping
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// ShouldLogAsError reports whether err is unexpected enough for ERROR level.
// Categorized network failures are warnings.
func ShouldLogAsError(err error) bool {
	if err == nil {
		return false
	}
	return CategorizeNetworkError(err).Type == ErrorTypeUnknown
}
