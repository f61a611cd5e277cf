package dto

import (
	"net/http"
	"strings"

	"github.com/erp/shopledger/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is used when a dependency such as the database is down
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Request error codes
const (
	// ErrCodeValidation is the base code for request validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeInvalidID is used when a path id is not a UUID
	ErrCodeInvalidID = "ERR_INVALID_ID"
	// ErrCodePayloadTooLarge is used when the body exceeds the configured limit
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
	// ErrCodeRequestTimeout is used when the handler ran past the request deadline
	ErrCodeRequestTimeout = "ERR_REQUEST_TIMEOUT"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConcurrencyConflict is used when a sale kept changing under a write
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeOptimisticLock is used when a version check failed
	ErrCodeOptimisticLock = "ERR_OPTIMISTIC_LOCK"
)

// Ledger rule error codes
const (
	// ErrCodeAmountExceedsOutstanding is used when a recovery is larger than the balance
	ErrCodeAmountExceedsOutstanding = "ERR_AMOUNT_EXCEEDS_OUTSTANDING"
	// ErrCodeInvalidAmount is used for non-positive or malformed amounts
	ErrCodeInvalidAmount = "ERR_INVALID_AMOUNT"
	// ErrCodeSaleCustomerMismatch is used when a recovery names another customer's sale
	ErrCodeSaleCustomerMismatch = "ERR_SALE_CUSTOMER_MISMATCH"
	// ErrCodeIdempotencyKeyReused is used when a key is replayed with a different payload
	ErrCodeIdempotencyKeyReused = "ERR_IDEMPOTENCY_KEY_REUSED"
	// ErrCodeInvalidStatus is used for unknown recovery statuses
	ErrCodeInvalidStatus = "ERR_INVALID_STATUS"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	// Request errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeInvalidID:       http.StatusBadRequest,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRequestTimeout:  http.StatusGatewayTimeout,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeOptimisticLock:      http.StatusConflict,

	// Ledger rule errors -> 422 Unprocessable Entity
	ErrCodeAmountExceedsOutstanding: http.StatusUnprocessableEntity,
	ErrCodeInvalidAmount:            http.StatusUnprocessableEntity,
	ErrCodeSaleCustomerMismatch:     http.StatusUnprocessableEntity,
	ErrCodeIdempotencyKeyReused:     http.StatusUnprocessableEntity,
	ErrCodeInvalidStatus:            http.StatusUnprocessableEntity,
	ErrCodeInvalidState:             http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// KindHTTPStatus is the fallback status for codes missing from ErrorCodeHTTPStatus
var KindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:       http.StatusUnprocessableEntity,
	shared.KindNotFound:         http.StatusNotFound,
	shared.KindConflict:         http.StatusConflict,
	shared.KindIntegrityWarning: http.StatusOK,
	shared.KindInternal:         http.StatusInternalServerError,
}

// StatusFor resolves the status of a domain error: an explicit code wins,
// otherwise the kind decides.
func StatusFor(kind shared.ErrorKind, code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if status, ok := KindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes whose API code differs from ERR_<code>
var DomainErrorCodeMapping = map[string]string{
	"OPTIMISTIC_LOCK_ERROR": ErrCodeOptimisticLock,
	"INVALID_INPUT":         ErrCodeValidation,
	"VALIDATION_ERROR":      ErrCodeValidation,
	"BAD_REQUEST":           ErrCodeBadRequest,
	"INTERNAL_ERROR":        ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the ERR_ format.
// Codes already in that format are returned as-is.
func NormalizeErrorCode(code string) string {
	if code == "" {
		return ErrCodeUnknown
	}
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	return "ERR_" + code
}
