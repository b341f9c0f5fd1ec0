package domain

import (
	"errors"
	"fmt"
	"time"
)

// AssessmentError represents a standardized error response
type AssessmentError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	cause     error
}

// Error implements the error interface
func (e *AssessmentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *AssessmentError) Unwrap() error {
	return e.cause
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput      = "INVALID_INPUT"
	ErrScoringInvariant  = "SCORING_INVARIANT"
	ErrExtractionService = "EXTRACTION_SERVICE_ERROR"
	ErrDocumentService   = "DOCUMENT_SERVICE_ERROR"
	ErrDatabaseError     = "DATABASE_ERROR"
	ErrRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrNotFound          = "NOT_FOUND"
	ErrInternalServer    = "INTERNAL_SERVER_ERROR"
)

// ErrEmptyInput is returned when the candidate text is blank.
var ErrEmptyInput = errors.New("candidate text is empty")

// ErrNonTextualInput is returned when the candidate text is not valid UTF-8
// or is dominated by control characters.
var ErrNonTextualInput = errors.New("candidate text is not textual")

// ErrInputTooLarge is returned when the candidate text exceeds the configured limit.
var ErrInputTooLarge = errors.New("candidate text exceeds maximum size")

// ErrCircuitOpen is returned by external clients whose circuit breaker is
// refusing calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrRateLimited is returned by external clients when the local limiter
// refuses a call.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrRecordNotFound is returned by stores when a record does not exist.
var ErrRecordNotFound = errors.New("record not found")

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
	Index   int         `json:"index,omitempty"`
	err     error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap returns the sentinel the validation failure was derived from, if any.
func (e *ValidationError) Unwrap() error {
	return e.err
}

// NewAssessmentError creates a new AssessmentError with timestamp
func NewAssessmentError(code, message, details, requestID string) *AssessmentError {
	return &AssessmentError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// WrapAssessmentError creates an AssessmentError carrying cause.
func WrapAssessmentError(code, message string, cause error) *AssessmentError {
	e := NewAssessmentError(code, message, "", "")
	if cause != nil {
		e.Details = cause.Error()
	}
	e.cause = cause
	return e
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewInputError wraps a sentinel input error as a ValidationError.
func NewInputError(field string, sentinel error, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: sentinel.Error(),
		Value:   value,
		err:     sentinel,
	}
}

// ErrorCode extracts the AssessmentError code from err, or ErrInternalServer.
func ErrorCode(err error) string {
	var ae *AssessmentError
	if errors.As(err, &ae) {
		return ae.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrInvalidInput
	}
	return ErrInternalServer
}
