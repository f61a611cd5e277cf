package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors for propagation and transport mapping.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	// KindIntegrityWarning marks a non-fatal side-effect failure. Callers log it and carry on.
	KindIntegrityWarning
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindIntegrityWarning:
		return "integrity_warning"
	default:
		return "internal"
	}
}

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"-"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches sentinel domain errors by code
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Kind:    kindForCode(code),
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports a violated input or balance constraint
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: message}
}

// NewNotFoundError reports an unresolved identifier
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", resource, id),
	}
}

// NewConflictError reports a lost race; the caller may retry
func NewConflictError(message string, cause error) *DomainError {
	return &DomainError{Kind: KindConflict, Code: "CONCURRENCY_CONFLICT", Message: message, Err: cause}
}

// NewIntegrityWarning wraps a best-effort side effect failure
func NewIntegrityWarning(message string, cause error) *DomainError {
	return &DomainError{Kind: KindIntegrityWarning, Code: "INTEGRITY_WARNING", Message: message, Err: cause}
}

// NewInternalError wraps an unexpected failure
func NewInternalError(message string, cause error) *DomainError {
	return &DomainError{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: cause}
}

// KindOf returns the kind of err, KindInternal for non-domain errors
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Kind == kind
}

func kindForCode(code string) ErrorKind {
	switch code {
	case "NOT_FOUND":
		return KindNotFound
	case "CONCURRENCY_CONFLICT", "OPTIMISTIC_LOCK_ERROR", "ALREADY_EXISTS":
		return KindConflict
	case "INTERNAL_ERROR":
		return KindInternal
	default:
		return KindValidation
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrOptimisticLock      = NewDomainError("OPTIMISTIC_LOCK_ERROR", "Record was modified by another transaction")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)
