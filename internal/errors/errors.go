package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeGeometry     ErrorType = "geometry"
	ErrorTypeInvalidImage ErrorType = "invalid_image"
	ErrorTypeNoCandidate  ErrorType = "no_candidate"
	ErrorTypePersistence  ErrorType = "persistence"
	ErrorTypeOCR          ErrorType = "ocr"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeInternal     ErrorType = "internal"
)

// AppError represents a structured application error.
// Candidate and Reference carry the extracted name and the image/message
// identifier so the caller can log the failure without extra bookkeeping.
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Candidate  string    `json:"candidate,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Reference != "" {
		msg += fmt.Sprintf(" [ref=%s]", e.Reference)
	}
	if e.Candidate != "" {
		msg += fmt.Sprintf(" [candidate=%q]", e.Candidate)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext returns a copy of the error annotated with the candidate name
// and the image/message reference. Empty arguments keep existing values.
func (e *AppError) WithContext(candidate, reference string) *AppError {
	cp := *e
	if candidate != "" {
		cp.Candidate = candidate
	}
	if reference != "" {
		cp.Reference = reference
	}
	return &cp
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewGeometryError reports a malformed bounding polygon. The pipeline drops
// the offending detection and keeps going.
func NewGeometryError(message string, cause error) *AppError {
	return newError(ErrorTypeGeometry, http.StatusBadRequest, message, cause)
}

// NewInvalidImageError reports a screenshot that is not of the qualifying genre.
// This is a normal negative result: skip, do not forward.
func NewInvalidImageError(message string, cause error) *AppError {
	return newError(ErrorTypeInvalidImage, http.StatusUnprocessableEntity, message, cause)
}

// NewNoCandidateError reports that no detection was eligible as a store name.
func NewNoCandidateError(message string, cause error) *AppError {
	return newError(ErrorTypeNoCandidate, http.StatusUnprocessableEntity, message, cause)
}

// NewPersistenceError reports a store I/O failure.
func NewPersistenceError(message string, cause error) *AppError {
	return newError(ErrorTypePersistence, http.StatusInternalServerError, message, cause)
}

// NewOCRError reports a failure of the OCR capability or of preprocessing.
func NewOCRError(message string, cause error) *AppError {
	return newError(ErrorTypeOCR, http.StatusBadGateway, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// IsSkip reports whether err is a normal "do not forward" outcome rather than a fault.
func IsSkip(err error) bool {
	return IsType(err, ErrorTypeInvalidImage) || IsType(err, ErrorTypeNoCandidate)
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
