package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidID       = 1004
	ErrCodeInvalidPayload  = 1005
	ErrCodeTooManyAssets   = 1006
	ErrCodeMissingRequired = 1009

	// Domain state (2xxx)
	ErrCodeKeyNotFound  = 2001
	ErrCodeAssetClaimed = 2101
	ErrCodeConflict     = 2102

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003
	ErrCodeQuotaExceeded     = 3004

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeNotImplemented = 4005

	// Upstream asset service (5xxx)
	ErrCodeUpstream        = 5001
	ErrCodeUpstreamTimeout = 5002
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 402:
		return ErrCodeQuotaExceeded
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeKeyNotFound
	case 409:
		return ErrCodeConflict
	case 413:
		return ErrCodeRequestTooLarge
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	case 504:
		return ErrCodeUpstreamTimeout
	default:
		return 0
	}
}

// exposesMessage reports whether errors with this code keep their message in
// 5xx responses. Upstream failures carry the normalized service error.
func exposesMessage(errCode int) bool {
	return errCode >= 5000 && errCode < 6000
}
