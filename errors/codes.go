package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Stream outcome errors
const (
	// ErrCodeSourceFailure indicates a producer failed while emitting.
	ErrCodeSourceFailure ErrorCode = "SOURCE_FAILURE"
	// ErrCodeOperatorFailure indicates a transform step failed.
	ErrCodeOperatorFailure ErrorCode = "OPERATOR_FAILURE"
	// ErrCodeCombinatorFailure indicates a branch of a zip, merge, flatten or race failed.
	ErrCodeCombinatorFailure ErrorCode = "COMBINATOR_FAILURE"
	// ErrCodeCancelled indicates a subscription was cancelled by its owner.
	// It is a terminal outcome, not a failure.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a storage error.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeDatabaseError:      true,
	ErrCodeExternalService:    true,
	ErrCodeSourceFailure:      false,
	ErrCodeOperatorFailure:    false,
	ErrCodeCombinatorFailure:  false,
	ErrCodeCancelled:          false,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
