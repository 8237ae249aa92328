package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldError names one invalid request field for Validation-kind errors.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Status  int          `json:"status"`
	Fields  []FieldError `json:"fields,omitempty"`
	Err     error        `json:"-"`
}

// WithFields attaches per-field validation detail and returns a copy.
func (e *Error) WithFields(fields []FieldError) *Error {
	clone := *e
	clone.Fields = fields
	return &clone
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the seven-kind taxonomy.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrEmailUnverified    = New("EMAIL_UNVERIFIED", http.StatusForbidden, "email address is not verified")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrBadRequest         = New("BAD_REQUEST", http.StatusBadRequest, "bad request")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusUnprocessableEntity, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// Domain-specific instances, all mapped to one of the seven kinds above.
	ErrPeriodNotActive        = New("PERIOD_NOT_ACTIVE", http.StatusConflict, "admission period is not active")
	ErrRegistrationFinalized  = New("REGISTRATION_FINALIZED", http.StatusConflict, "registration has already been finalized")
	ErrInvalidTransition      = New("INVALID_TRANSITION", http.StatusConflict, "registration state transition is not allowed")
	ErrQuotaBelowAccepted     = New("QUOTA_BELOW_ACCEPTED", http.StatusConflict, "quota cannot be reduced below the number of accepted registrations")
	ErrDuplicateRegistration  = New("DUPLICATE_REGISTRATION", http.StatusConflict, "an open registration already exists for this period")
	ErrMissingDocuments       = New("MISSING_DOCUMENTS", http.StatusConflict, "required documents are missing")
	ErrTokenExpired           = New("TOKEN_EXPIRED", http.StatusBadRequest, "token has expired")
	ErrInvalidVerifyToken     = New("INVALID_VERIFY_TOKEN", http.StatusBadRequest, "verification token is invalid or already used")
	ErrDuplicateSchoolNPSN    = New("DUPLICATE_NPSN", http.StatusConflict, "a school with this NPSN already exists")
	ErrOverlappingActivePeriod = New("OVERLAPPING_ACTIVE_PERIOD", http.StatusConflict, "an active period already exists for this school, academic year and level")

	// ErrCacheMiss is a sentinel, not part of the HTTP-facing taxonomy.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
