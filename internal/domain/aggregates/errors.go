package aggregates

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed aggregate write. HTTP status and retry
// decisions key off the code, never the message.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "validation"
	CodeNotFound      ErrorCode = "not_found"
	CodeConflict      ErrorCode = "conflict"
	CodeQuotaExceeded ErrorCode = "quota_exceeded"
	CodeRetryable     ErrorCode = "retryable"
	CodeInternal      ErrorCode = "internal"
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}

// Wrap keeps err as the cause and copies its text into the message.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: err.Error(), Cause: err}
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns "" for errors that are not aggregate errors.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}
