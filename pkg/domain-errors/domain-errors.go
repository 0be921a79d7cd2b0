package domainerrors

import (
	"errors"
	"maps"
)

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_failed"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"

	// Review workflow codes
	CodeInvalidEquityStructure Code = "invalid_equity_structure"
	CodeIllegalTransition      Code = "illegal_transition"
	CodeMissingReviewer        Code = "missing_reviewer"
	CodeConcurrentModification Code = "concurrent_modification"
	CodeAuditWriteFailure      Code = "audit_write_failure"
	CodeStorageTimeout         Code = "storage_timeout"
)

// Detail keys attached to workflow errors so callers can log or display them.
const (
	DetailCaseID = "case_id"
	DetailFrom   = "from"
	DetailTo     = "to"
	DetailKind   = "kind"
	DetailAt     = "at"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
	Details map[string]string
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

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code and details are preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err, Details: maps.Clone(existing.Details)}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetails returns err with the given key/value pairs merged into its details.
// Non-domain errors are wrapped as CodeInternal first.
func WithDetails(err error, kv map[string]string) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if !errors.As(err, &existing) {
		existing = &Error{Code: CodeInternal, Message: err.Error(), Err: err}
	} else {
		cp := *existing
		existing = &cp
	}
	merged := make(map[string]string, len(existing.Details)+len(kv))
	maps.Copy(merged, existing.Details)
	for k, v := range kv {
		if v != "" {
			merged[k] = v
		}
	}
	existing.Details = merged
	return existing
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in err's chain,
// or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// DetailsOf returns the details of the outermost domain error in err's chain.
func DetailsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// IsValidation reports whether err is a caller-correctable input error.
func IsValidation(err error) bool {
	return HasCode(err, CodeValidation) || HasCode(err, CodeInvalidEquityStructure) || HasCode(err, CodeBadRequest)
}
