package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"assetgate/internal/upstream"
)

// ErrInvalidKey marks a bearer key that is malformed or unknown.
var ErrInvalidKey = errors.New("invalid key")

// Kind classifies workflow failures.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindQuotaExceeded
	KindInvalidPayload
	KindUpstream
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindInvalidPayload:
		return "invalid_payload"
	case KindUpstream:
		return "upstream"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error is a workflow failure with the HTTP status it maps to.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Status: statusForKind(kind), Message: message, Err: err}
}

func statusForKind(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindQuotaExceeded:
		return http.StatusPaymentRequired
	case KindInvalidPayload:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// upstreamError wraps a failed upstream step as "<step> (<status>): <message>".
func upstreamError(step string, err error) *Error {
	switch {
	case errors.Is(err, upstream.ErrPollTimeout):
		return newError(KindTimeout, step+": operation did not finish in time", err)
	case errors.Is(err, upstream.ErrTransport):
		return newError(KindUpstream, step+": asset service unreachable", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(KindInternal, step, err)
	}

	var grantErr *upstream.GrantError
	if errors.As(err, &grantErr) {
		return newError(KindUpstream, fmt.Sprintf("%s (%d): %s", step, http.StatusInternalServerError, grantErr.Message), err)
	}
	if status := upstream.StatusCode(err); status != 0 {
		return newError(KindUpstream, fmt.Sprintf("%s (%d): %s", step, status, upstream.Message(err)), err)
	}
	return newError(KindInternal, step, err)
}
