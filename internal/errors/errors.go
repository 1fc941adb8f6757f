// Package errors provides error types and handling for API surface discovery.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// ErrorType categorizes probe errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Network represents network-related errors (DNS, connection, TLS).
	Network
	// Timeout represents a request that hit its deadline.
	Timeout
	// Cancelled represents context cancellation.
	Cancelled
	// Request represents a request that could not be built.
	Request
	// Body represents a failure while reading a response body.
	Body
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Cancelled:
		return "cancelled"
	case Request:
		return "request"
	case Body:
		return "body"
	default:
		return "unknown"
	}
}

// FailureKind splits probe failures into the ones discovery expects to see
// on most targets and the ones worth reporting.
type FailureKind int

const (
	// KindSuppressed failures are dropped silently.
	KindSuppressed FailureKind = iota
	// KindUnexpected failures are dropped too, but logged and counted.
	KindUnexpected
)

// String returns the string representation of FailureKind.
func (k FailureKind) String() string {
	if k == KindSuppressed {
		return "suppressed"
	}
	return "unexpected"
}

// Kind returns the failure kind for errors of this type.
func (t ErrorType) Kind() FailureKind {
	switch t {
	case Network, Timeout, Cancelled:
		return KindSuppressed
	default:
		return KindUnexpected
	}
}

// ProbeError represents a categorized failure of one HTTP request.
type ProbeError struct {
	Type      ErrorType
	URL       string
	Operation string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target.
func (e *ProbeError) Is(target error) bool {
	t, ok := target.(*ProbeError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Kind returns whether the failure is suppressed or unexpected.
func (e *ProbeError) Kind() FailureKind {
	return e.Type.Kind()
}

// NewProbeError creates a new ProbeError.
func NewProbeError(errType ErrorType, url, operation, message string, cause error) *ProbeError {
	return &ProbeError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Network, url, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Timeout, url, operation, "request timed out", cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *ProbeError {
	return NewProbeError(Cancelled, url, operation, "operation cancelled", nil)
}

// NewRequestError creates an error for a request that could not be built.
func NewRequestError(url string, cause error) *ProbeError {
	return NewProbeError(Request, url, "request_creation", "failed to create request", cause)
}

// NewBodyError creates a body read error.
func NewBodyError(url string, cause error) *ProbeError {
	return NewProbeError(Body, url, "body_read", "failed to read body", cause)
}

// Categorize determines the error type from a transport error.
func Categorize(err error, url string) *ProbeError {
	if err == nil {
		return nil
	}

	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr
	}

	// Deadline first: a fired timeout also reports as a cancelled context.
	if isTimeout(err) {
		return NewTimeoutError(url, "request", err)
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, "request")
	}

	if isNetworkError(err) {
		return NewNetworkError(url, "request", err)
	}

	return NewProbeError(Unknown, url, "request", err.Error(), err)
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	// Transport-level failures (TLS handshake, malformed response, EOF from a
	// closed connection) surface as *url.Error from http.Client.Do.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsSuppressed reports whether err is an expected probe failure.
func IsSuppressed(err error) bool {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.Kind() == KindSuppressed
	}
	return false
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.Type
	}
	return Unknown
}

// ErrInvalidURL matches every InvalidURLError via errors.Is.
var ErrInvalidURL = errors.New("invalid url")

// InvalidURLMessage is shown to the user when the scheme is missing or wrong.
const InvalidURLMessage = "URL must start with http:// or https://"

// InvalidURLError is returned when scan input cannot seed discovery.
// It is the only error that aborts a scan.
type InvalidURLError struct {
	Input  string
	Reason string
	Cause  error
}

// NewInvalidURLError creates an InvalidURLError.
func NewInvalidURLError(input, reason string, cause error) *InvalidURLError {
	return &InvalidURLError{Input: input, Reason: reason, Cause: cause}
}

// Error implements the error interface.
func (e *InvalidURLError) Error() string {
	if e.Reason == "" {
		return InvalidURLMessage
	}
	return e.Reason
}

// Unwrap returns the underlying parse error, if any.
func (e *InvalidURLError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrInvalidURL) match.
func (e *InvalidURLError) Is(target error) bool {
	return target == ErrInvalidURL
}

// IsInvalidURL reports whether err is an InvalidURLError.
func IsInvalidURL(err error) bool {
	return errors.Is(err, ErrInvalidURL)
}
