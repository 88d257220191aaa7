package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in settlement terms, not HTTP terms.
type Code string

const (
	// Validation failures.
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeConflict     Code = "conflict"

	// Authorization failures.
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"

	// Payment failures.
	CodeInsufficientPayment Code = "insufficient_payment"
	CodeTransferFailed      Code = "transfer_failed"
	CodeReentrantCall       Code = "reentrant_call"

	// State failures.
	CodePoolPaused  Code = "pool_paused"
	CodeEmptyPool   Code = "empty_pool"
	CodeZeroBalance Code = "zero_balance"

	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
)

// Error wraps domain or infrastructure failures with a stable code and the
// offending parameters, so callers and tests can assert on the exact cause
// (required vs sent amount, offending id) rather than failure/success alone.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Params  map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Param returns a structured parameter attached to the error, or nil.
func (e *Error) Param(key string) any {
	if e.Params == nil {
		return nil
	}
	return e.Params[key]
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// NewWithParams creates a new domain error carrying structured parameters.
func NewWithParams(code Code, msg string, params map[string]any) error {
	return &Error{Code: code, Message: msg, Params: params}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Params: existing.Params, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// WrapWithParams creates a new domain error wrapping an existing error and
// carrying structured parameters. A wrapped domain error keeps its code.
func WrapWithParams(err error, code Code, msg string, params map[string]any) error {
	var existing *Error
	if errors.As(err, &existing) {
		code = existing.Code
	}
	return &Error{Code: code, Message: msg, Params: params, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ParamOf extracts a structured parameter from a domain error, or nil when the
// error is not a domain error or does not carry the parameter.
func ParamOf(err error, key string) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Param(key)
	}
	return nil
}
