package apperrors

import (
	"errors"
	"strings"
)

// Common errors
var (
	// Resource errors
	ErrNotFound              = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")
	ErrInvalidState          = errors.New("invalid state")

	// Authentication errors
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenNotFound      = errors.New("token not found")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Downstream failures (database, storage, gateway)
	ErrInternal = errors.New("internal error")

	// Content Errors
	ErrInvalidFormat = errors.New("invalid token format")
)

// User Errors
var (
	ErrUserNotFound       = NewResourceNotFoundError("user not found")
	ErrEmailAlreadyExists = NewConflictError("email already exists")
)

// Application Errors
var (
	ErrApplicationNotFound   = NewResourceNotFoundError("application not found")
	ErrApplicationNotPending = NewConflictError("application is no longer pending")
)

// Student Errors
var (
	ErrStudentNotFound     = NewResourceNotFoundError("student not found")
	ErrNotEligiblePromote  = NewInvalidStateError("student is not eligible for promotion")
	ErrNotEligibleGraduate = NewInvalidStateError("student has not reached the final semester")
	ErrStudentGraduated    = NewConflictError("student has already graduated")
)

// Academic Record Errors
var (
	ErrSemesterNotFound       = NewResourceNotFoundError("semester not found")
	ErrAcademicRecordNotFound = NewResourceNotFoundError("academic record not found")
	ErrSemesterAhead          = NewInvalidStateError("record semester is ahead of the student's current semester")
)

// Payment Errors
var (
	ErrFeeNotFound         = NewResourceNotFoundError("no fee configured for payment type and course")
	ErrPaymentNotFound     = NewResourceNotFoundError("payment not found")
	ErrOrderMismatch       = NewConflictError("order id does not match the gateway payment")
	ErrPaymentNotCaptured  = NewInvalidStateError("payment has not been captured")
	ErrInvalidWebhookSig   = NewCustomError(ErrUnauthorized, "invalid webhook signature")
	ErrPaymentGatewayError = NewCustomError(ErrInternal, "payment gateway request failed")
)

// File Errors
var (
	ErrUnknownSlot         = NewBadRequestError("unknown file slot")
	ErrFileNotFound        = NewResourceNotFoundError("file not found")
	ErrUnsupportedFileType = NewBadRequestError("unsupported file type")
	ErrFileTooLarge        = NewBadRequestError("file exceeds the maximum upload size")
)

// Verification / password reset errors
var (
	ErrVerificationNotFound      = NewResourceNotFoundError("verification reference not found or expired")
	ErrInvalidOTP                = NewValidationError("invalid verification code", "otp")
	ErrInvalidPasswordResetToken = NewCustomError(ErrTokenInvalid, "invalid or expired password reset token")
	ErrPasswordResetTokenUsed    = NewCustomError(ErrTokenInvalid, "password reset token has already been used")
)

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) *CustomError {
	return &CustomError{
		Err:     ErrNotFound,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) *CustomError {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewInvalidStateError creates a new custom error for state-machine violations
func NewInvalidStateError(message string) *CustomError {
	return &CustomError{
		Err:     ErrInvalidState,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) *CustomError {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) *CustomError {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// ValidationError reports every field that failed validation, not just the first.
type ValidationError struct {
	Message string
	Fields  []string
}

// NewValidationError creates a ValidationError for the given fields
func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// Error implements error interface
func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ErrValidationFailed.Error()
	}
	if len(e.Fields) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(e.Fields, ", ")
}

// Unwrap lets errors.Is(err, ErrValidationFailed) match
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// HasField reports whether field is among the failing fields
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}
