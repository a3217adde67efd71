package grid

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an error for the caller's handling logic.
type ErrorClass string

const (
	// ErrorClassInvalid marks a request the booking policy or input checks reject.
	ErrorClassInvalid ErrorClass = "invalid"

	// ErrorClassConflict marks a request that collides with existing reservations.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassNotFound marks a lookup of a missing record.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassInternal marks store, config or runtime failures.
	ErrorClassInternal ErrorClass = "internal"
)

// Common error codes.
const (
	ErrCodeRuleRejected    = "RULE_REJECTED"
	ErrCodeSlotTaken       = "SLOT_TAKEN"
	ErrCodeAdmissionDenied = "ADMISSION_DENIED"
	ErrCodeBadSelection    = "BAD_SELECTION"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConfigInvalid   = "CONFIG_INVALID"
)

// Error is a classified error with booking context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code is an optional code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Message is the human-readable message.
	Message string `json:"message"`

	// Op is the operation that failed.
	Op string `json:"op,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details carries additional context.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s (op=%s)", e.Class, e.Message, e.Op)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same class and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewInvalidError creates an invalid-class error.
func NewInvalidError(message string, err error) *Error {
	return &Error{Class: ErrorClassInvalid, Message: message, Err: err}
}

// NewConflictError creates a conflict-class error.
func NewConflictError(message string, err error) *Error {
	return &Error{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string, err error) *Error {
	return &Error{Class: ErrorClassNotFound, Message: message, Err: err, Code: ErrCodeNotFound}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, err error) *Error {
	return &Error{Class: ErrorClassInternal, Message: message, Err: err}
}

// WithCode sets the error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithOp sets the failing operation.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetail adds a detail field.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func hasClass(err error, class ErrorClass) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsInvalid reports whether err is classified invalid.
func IsInvalid(err error) bool { return hasClass(err, ErrorClassInvalid) }

// IsConflict reports whether err is classified conflict.
func IsConflict(err error) bool { return hasClass(err, ErrorClassConflict) }

// IsNotFound reports whether err is classified not found.
func IsNotFound(err error) bool { return hasClass(err, ErrorClassNotFound) }

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
