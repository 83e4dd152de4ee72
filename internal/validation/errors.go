package validation

import (
	"errors"
	"fmt"
)

// Error represents a structured error from the validation package.
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	// ErrCodeUnprotected indicates a message without a protection value.
	ErrCodeUnprotected ErrorCode = "UNPR"

	// ErrCodeUnsupportedAlgorithm indicates a protection or digest algorithm that is not supported.
	ErrCodeUnsupportedAlgorithm ErrorCode = "UALG"

	// ErrCodeNoTrustedCertificates indicates path validation was needed but no trust anchors are configured.
	ErrCodeNoTrustedCertificates ErrorCode = "NTRC"

	// ErrCodeNoValidSenderCertificate indicates no candidate sender certificate could be validated.
	ErrCodeNoValidSenderCertificate ErrorCode = "NVSC"

	// ErrCodeEncoding indicates the protected part could not be encoded.
	ErrCodeEncoding ErrorCode = "BENC"

	// ErrCodeMACMismatch indicates the shared-secret MAC did not verify.
	ErrCodeMACMismatch ErrorCode = "BMAC"

	// ErrCodeSignatureMismatch indicates the signature did not verify.
	ErrCodeSignatureMismatch ErrorCode = "BSIG"

	// ErrCodeWrongKeyUsage indicates the sender certificate may not be used for signing.
	ErrCodeWrongKeyUsage ErrorCode = "BKU"

	// ErrCodeAllocationFailure indicates candidate discovery exceeded its resource limit.
	ErrCodeAllocationFailure ErrorCode = "ALLC"

	// ErrCodeInternal indicates internal processing failures.
	ErrCodeInternal ErrorCode = "INT"
)

// ValidationError represents a structured error from the validation package.
type ValidationError struct {
	// code is the error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *ValidationError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *ValidationError) Code() ErrorCode { return e.code }
func (e *ValidationError) Unwrap() error   { return e.wrapped }

// NewError creates a validation error with the given code.
func NewError(code ErrorCode, msg string) error {
	return &ValidationError{code: code, message: msg}
}

// WrapError wraps err as a validation error with the given code.
func WrapError(code ErrorCode, err error, msg string) error {
	return &ValidationError{code: code, message: msg, wrapped: err}
}

// CodeOf returns the validation ErrorCode of err, or the empty code if err is not a validation error.
func CodeOf(err error) ErrorCode {
	var validationErr Error
	if errors.As(err, &validationErr) {
		return validationErr.Code()
	}
	return ""
}
