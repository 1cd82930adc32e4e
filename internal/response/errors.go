package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound       ErrCode = "NOT_FOUND"
	ErrRunNotRecorded ErrCode = "RUN_NOT_RECORDED"
	ErrRunStatusOff   ErrCode = "RUN_STATUS_DISABLED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrValidation:
		return "Validation failed. Check the request parameters."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrNotFound:
		return "Activity not found."
	case ErrRunNotRecorded:
		return "No harvest run has been recorded yet."
	case ErrRunStatusOff:
		return "Run status is not available: no Redis store is configured."
	case ErrRateLimitExceeded:
		return "Too many requests. Try again later."
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}
