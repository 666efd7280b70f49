package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeUpstream         ErrorType = "upstream"
	ErrorTypeInconsistentData ErrorType = "inconsistent_data"
	ErrorTypeInternal         ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrRunNotFound   = NewDomainError(ErrorTypeNotFound, "no events found for correlation id", nil)
	ErrEventNotFound = NewDomainError(ErrorTypeNotFound, "audit event not found", nil)

	// Validation Errors
	ErrInvalidInput         = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidWindow        = NewDomainError(ErrorTypeValidation, "window end must not precede start", nil)
	ErrMissingCorrelationID = NewDomainError(ErrorTypeValidation, "correlation id is required", nil)
	ErrMissingSourceSystem  = NewDomainError(ErrorTypeValidation, "source system is required", nil)
	ErrInvalidCheckpoint    = NewDomainError(ErrorTypeValidation, "unknown checkpoint stage", nil)
	ErrInvalidStatus        = NewDomainError(ErrorTypeValidation, "unknown event status", nil)
	ErrInvalidDetailLevel   = NewDomainError(ErrorTypeValidation, "unknown report detail level", nil)
	ErrInvalidPagination    = NewDomainError(ErrorTypeValidation, "page must be >= 0 and size >= 1", nil)

	// Upstream Errors
	ErrEventStoreUnavailable = NewDomainError(ErrorTypeUpstream, "event store did not answer", nil)

	// Inconsistent Data Errors
	ErrMalformedEvent = NewDomainError(ErrorTypeInconsistentData, "stored event could not be interpreted", nil)

	// Internal Errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsUpstreamError checks if an error came from the event store gateway
func IsUpstreamError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUpstream
	}
	return false
}

// IsInconsistentDataError checks if an error marks a malformed stored event
func IsInconsistentDataError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInconsistentData
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapUpstream wraps an error as an event store gateway failure, so callers
// can retry with backoff instead of treating it as a missing run
func WrapUpstream(message string, err error) error {
	return NewDomainError(ErrorTypeUpstream, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
