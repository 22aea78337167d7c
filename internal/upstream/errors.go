package upstream

import (
	"errors"
	"fmt"
)

// ErrTransport matches every TransportError.
var ErrTransport = errors.New("upstream transport failure")

// ErrPollTimeout is returned when an operation is still running after the
// poller's deadline.
var ErrPollTimeout = errors.New("upstream operation did not complete in time")

// StatusError is a non-2xx response from the asset service. Message is the
// normalized form of whatever error body the service returned.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: HTTP %d: %s", e.StatusCode, e.Message)
}

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// OperationError is an operation that finished without a usable result.
type OperationError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("upstream: operation %s failed: %s", e.Path, e.Message)
}

// GrantError is a permission grant that the service accepted with HTTP
// success but reported per-asset failures for.
type GrantError struct {
	AssetID int64
	Message string
}

func (e *GrantError) Error() string {
	return fmt.Sprintf("upstream: permission grant for asset %d failed: %s", e.AssetID, e.Message)
}

// StatusCode returns the upstream HTTP status carried by err, or 0 when the
// failure never reached the service.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.StatusCode
	}
	return 0
}

// Message returns the normalized upstream message carried by err, falling
// back to err.Error().
func Message(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Message
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Message
	}
	var grantErr *GrantError
	if errors.As(err, &grantErr) {
		return grantErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
