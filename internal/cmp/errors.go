package cmp

import "fmt"

// Error represents a structured error from the cmp package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeEncoding ErrorCode = "encoding"
	ErrCodeDecoding ErrorCode = "decoding"
)

// CMPError represents a structured error from the cmp package
type CMPError struct {

	// code is the error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *CMPError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *CMPError) Code() ErrorCode { return e.code }
func (e *CMPError) Unwrap() error   { return e.wrapped }

// NewEncodingError creates an encoding error.
// Use this when a header or body field cannot be represented in DER
// (unknown body type, missing certificate in a typed payload, unknown GeneralName tag etc).
func NewEncodingError(msg string) error {
	return &CMPError{code: ErrCodeEncoding, message: msg}
}

// WrapEncodingError wraps an existing error as an encoding error.
func WrapEncodingError(err error, msg string) error {
	return &CMPError{code: ErrCodeEncoding, message: msg, wrapped: err}
}

// NewDecodingError creates a decoding error for malformed input.
func NewDecodingError(msg string) error {
	return &CMPError{code: ErrCodeDecoding, message: msg}
}

// WrapDecodingError wraps an existing error as a decoding error.
func WrapDecodingError(err error, msg string) error {
	return &CMPError{code: ErrCodeDecoding, message: msg, wrapped: err}
}
