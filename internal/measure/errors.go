package measure

import (
	"errors"
	"fmt"
)

// Code is a machine-readable rejection reason.
type Code string

const (
	CodeMalformedPayload       Code = "MALFORMED_PAYLOAD"
	CodeWrongSampleCount       Code = "WRONG_SAMPLE_COUNT"
	CodeInvalidTemperature     Code = "INVALID_TEMPERATURE"
	CodeInvalidConfidence      Code = "INVALID_CONFIDENCE"
	CodeOutOfRange             Code = "OUT_OF_RANGE"
	CodeStoreFailure           Code = "STORE_FAILURE"
	CodeTemperatureUnavailable Code = "TEMPERATURE_UNAVAILABLE"
)

// Internal reports whether the code signals a broken invariant inside the
// pipeline rather than bad input from the device.
func (c Code) Internal() bool {
	return c == CodeInvalidConfidence || c == CodeInvalidTemperature
}

// Error is a pipeline rejection. Stage records the last stage the batch
// reached before it was rejected.
type Error struct {
	Code    Code
	Stage   Stage
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, &Error{Code: CodeOutOfRange}) works
// regardless of message.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the rejection code from err, or "" if err is not a
// pipeline error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
