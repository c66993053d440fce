package errors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"syscall"
)

// ErrorKind is the coarse origin of a failure as seen at the boundary
// where raw errors are caught.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindHTTP        ErrorKind = "http"
	KindApplication ErrorKind = "application"
)

// NormalizedError is the stable shape the classifier operates on. Raw
// errors are converted exactly once, at the boundary, so downstream code
// never inspects concrete error types again.
type NormalizedError struct {
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *NormalizedError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause
func (e *NormalizedError) Unwrap() error {
	return e.Cause
}

var httpStatusPattern = regexp.MustCompile(`(?i)\b(?:http\s+)?(?:status(?:\s+code)?[:\s]+)?([1-5]\d{2})\b`)

// Normalize converts an arbitrary error into a NormalizedError. It is
// total: nil input yields an application-kind error with an empty
// message rather than a nil result.
func Normalize(err error) *NormalizedError {
	if err == nil {
		return &NormalizedError{Kind: KindApplication, Message: ""}
	}

	var norm *NormalizedError
	if errors.As(err, &norm) {
		if norm == nil {
			return &NormalizedError{Kind: KindApplication, Message: ""}
		}
		return norm
	}

	msg := err.Error()

	// Transport-level failures
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT):
		return &NormalizedError{Kind: KindNetwork, Message: msg, Cause: err}
	case errors.As(err, &urlErr):
		return &NormalizedError{Kind: KindNetwork, Message: msg, Cause: err}
	case errors.As(err, &netErr):
		return &NormalizedError{Kind: KindNetwork, Message: msg, Cause: err}
	}

	// HTTP failures carried as text, e.g. "HTTP 503: Service Unavailable"
	if m := httpStatusPattern.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return &NormalizedError{Kind: KindHTTP, StatusCode: code, Message: msg, Cause: err}
		}
	}

	return &NormalizedError{Kind: KindApplication, Message: msg, Cause: err}
}

// NewHTTPError builds a NormalizedError from an explicit HTTP status.
func NewHTTPError(statusCode int, message string) *NormalizedError {
	return &NormalizedError{Kind: KindHTTP, StatusCode: statusCode, Message: message}
}

// NewNetworkError builds a NormalizedError for a transport failure.
func NewNetworkError(message string, cause error) *NormalizedError {
	return &NormalizedError{Kind: KindNetwork, Message: message, Cause: cause}
}
