// Package domainerrors defines coded errors shared by services and transports.
//
// Services return *Error values so handlers can map them onto HTTP responses
// without knowing which store or guardrail produced them. Infrastructure
// facts (not found, conflict) come from pkg/platform/sentinel and are
// translated into codes at the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"

	// Engine-specific rejections.
	CodeGuardrailVetoed        Code = "guardrail_vetoed"
	CodeGuardrailPending       Code = "guardrail_pending"
	CodeQuorumNotMet           Code = "quorum_not_met"
	CodeResourceUnavailable    Code = "resource_unavailable"
	CodeArtificialScarcity     Code = "artificial_scarcity_detected"
	CodeExpiredProposal        Code = "expired_proposal"
	CodeConcurrentModification Code = "concurrent_modification"
	CodeStillLocked            Code = "still_locked"
)

// Error is a coded error with a caller-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a coded error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf formats the message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.Err
			continue
		}
		return false
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost caller-safe message.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// Is is a convenience re-export so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
