package proxy

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/geoproxy/internal/allowlist"
)

// Client-visible error messages.
const (
	MsgProxyFailed = "proxy request failed"
)

// Sentinel errors for proxy operations.
var (
	// ErrForbiddenAPIKey indicates that the requested API is not allowed.
	ErrForbiddenAPIKey = allowlist.ErrForbiddenAPIKey

	// ErrInvalidTarget indicates that the upstream URL could not be built.
	ErrInvalidTarget = errors.New("invalid target URL")

	// ErrUpstreamFailed indicates a network or transport failure.
	ErrUpstreamFailed = errors.New("upstream request failed")

	// ErrBodyRead indicates that the upstream body could not be read or decoded.
	ErrBodyRead = errors.New("upstream body read failed")

	// ErrBodyTooLarge indicates that the upstream body exceeded the size limit.
	ErrBodyTooLarge = errors.New("upstream body too large")

	// ErrInvalidJSON indicates that the upstream body is not valid JSON.
	ErrInvalidJSON = errors.New("upstream body is not valid JSON")
)

// ProxyError represents a proxy-related error with details.
type ProxyError struct {
	Op      string // Operation that failed
	APIKey  string // Allow-list key
	Target  string // Upstream URL if known
	Message string // Human-readable message
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	msg := fmt.Sprintf("proxy error [%s] api=%s", e.Op, e.APIKey)
	if e.Target != "" {
		msg += " target=" + e.Target
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ProxyError) Is(target error) bool {
	_, ok := target.(*ProxyError)
	return ok || errors.Is(e.Cause, target)
}

func newProxyError(op, apiKey, target, message string, cause error) *ProxyError {
	return &ProxyError{
		Op:      op,
		APIKey:  apiKey,
		Target:  target,
		Message: message,
		Cause:   cause,
	}
}

// IsProxyError checks if an error is a ProxyError.
func IsProxyError(err error) bool {
	var proxyErr *ProxyError
	return errors.As(err, &proxyErr)
}

// IsForbidden reports whether err is an allow-list rejection.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbiddenAPIKey)
}
