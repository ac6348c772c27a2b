package ir

import (
	"errors"
	"fmt"
)

// Error is the structured error raised by adapters, resolvers and the
// identifier sanitizer. File-system errors are never wrapped in an Error; they
// propagate unchanged.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Key is the offending source key or field, when there is one.
	Key string

	// Pin is the offending pin, for reserved-pin and label errors.
	Pin string

	// Err is the underlying decode error for ErrCodeDeserialize.
	Err error
}

// ErrorCode categorizes IR pipeline errors.
type ErrorCode string

const (
	// ErrCodeMissingField indicates a required key is absent (e.g. Mcu.Name).
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"

	// ErrCodeReservedPin indicates an SWD debug pin was configured without override.
	ErrCodeReservedPin ErrorCode = "RESERVED_PIN"

	// ErrCodeUnknownMCU indicates the AF database has no entry for the part.
	ErrCodeUnknownMCU ErrorCode = "UNKNOWN_MCU"

	// ErrCodeDeserialize indicates malformed YAML or JSON input.
	ErrCodeDeserialize ErrorCode = "DESERIALIZE"

	// ErrCodeDuplicateLabel indicates two labels sanitize to one identifier in strict mode.
	ErrCodeDuplicateLabel ErrorCode = "DUPLICATE_LABEL"

	// ErrCodeNoInputFiles indicates an empty input file list.
	ErrCodeNoInputFiles ErrorCode = "NO_INPUT_FILES"

	// ErrCodeInvalidIR indicates an IR that breaks a structural invariant.
	ErrCodeInvalidIR ErrorCode = "INVALID_IR"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying decode error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// NewMissingField creates an Error for an absent required key.
func NewMissingField(key string) *Error {
	return &Error{
		Code:    ErrCodeMissingField,
		Message: fmt.Sprintf("required field %s is missing", key),
		Key:     key,
	}
}

// NewReservedPin creates an Error for a configured SWD debug pin.
func NewReservedPin(pin string) *Error {
	return &Error{
		Code:    ErrCodeReservedPin,
		Message: fmt.Sprintf("reserved pin %s configured (SWD debug interface)", pin),
		Pin:     pin,
	}
}

// NewUnknownMCU creates an Error for a part missing from the AF database.
func NewUnknownMCU(mcu string) *Error {
	return &Error{
		Code:    ErrCodeUnknownMCU,
		Message: fmt.Sprintf("MCU %q not found in chip database", mcu),
		Key:     mcu,
	}
}

// NewDeserialize wraps a decode error from the named source.
func NewDeserialize(source string, err error) *Error {
	return &Error{
		Code:    ErrCodeDeserialize,
		Message: fmt.Sprintf("cannot decode %s", source),
		Key:     source,
		Err:     err,
	}
}

// NewDuplicateLabel creates an Error for an identifier collision in strict mode.
func NewDuplicateLabel(ident, pin string) *Error {
	return &Error{
		Code:    ErrCodeDuplicateLabel,
		Message: fmt.Sprintf("duplicate label after sanitization: %s", ident),
		Key:     ident,
		Pin:     pin,
	}
}

// NewNoInputFiles creates an Error for an empty input list.
func NewNoInputFiles(what string) *Error {
	return &Error{
		Code:    ErrCodeNoInputFiles,
		Message: fmt.Sprintf("no %s provided", what),
	}
}

// NewInvalidIR creates an Error for a broken IR invariant.
func NewInvalidIR(key, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidIR,
		Message: message,
		Key:     key,
	}
}
