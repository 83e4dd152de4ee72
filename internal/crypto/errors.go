package crypto

import (
	"errors"
	"fmt"
)

// Error represents a structured error from the crypto package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeValidation            ErrorCode = "validation"
	ErrCodeUnsupportedAlgorithm  ErrorCode = "unsupported_algorithm"
	ErrCodeInvalidMAC            ErrorCode = "invalid_mac"
	ErrCodeInvalidSignature      ErrorCode = "invalid_signature"
	ErrCodeKeyUsage              ErrorCode = "key_usage"
	ErrCodeCertificate           ErrorCode = "certificate"
	ErrCodeNoTrustedCertificates ErrorCode = "no_trusted_certificates"
	ErrCodeResourceLimit         ErrorCode = "resource_limit"
	ErrCodeInternal              ErrorCode = "internal"
)

// CryptoError represents a structured error from the crypto package
type CryptoError struct {

	// code is the cryptoerror code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *CryptoError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *CryptoError) Code() ErrorCode { return e.code }
func (e *CryptoError) Unwrap() error   { return e.wrapped }

// NewValidationError creates a validation error for invalid input.
// Use this for malformed algorithm parameters, bad PEM input and out of range values
// such as an iteration count outside the permitted bounds.
//
// The returned error will have code ErrCodeValidation.
func NewValidationError(msg string) error {
	return &CryptoError{code: ErrCodeValidation, message: msg}
}

// WrapValidationError wraps an existing error as a validation error.
//
// The returned error will have code ErrCodeValidation.
func WrapValidationError(err error, msg string) error {
	return &CryptoError{code: ErrCodeValidation, message: msg, wrapped: err}
}

// NewUnsupportedAlgorithmError is returned when an algorithm identifier is not in the registry
// or names a scheme that is deliberately not implemented (DHBasedMac).
//
// The returned error will have code ErrCodeUnsupportedAlgorithm.
func NewUnsupportedAlgorithmError(msg string) error {
	return &CryptoError{code: ErrCodeUnsupportedAlgorithm, message: msg}
}

// NewMACError creates a MAC verification error.
//
// The returned error will have code ErrCodeInvalidMAC.
func NewMACError(msg string) error {
	return &CryptoError{code: ErrCodeInvalidMAC, message: msg}
}

// NewSignatureError creates a signature verification error.
// Use this for errors related to signature verification failures or malformed signatures.
//
// The returned error will have code ErrCodeInvalidSignature.
func NewSignatureError(msg string) error {
	return &CryptoError{code: ErrCodeInvalidSignature, message: msg}
}

// WrapSignatureError wraps an existing error as a signature error.
//
// The returned error will have code ErrCodeInvalidSignature.
func WrapSignatureError(err error, msg string) error {
	return &CryptoError{code: ErrCodeInvalidSignature, message: msg, wrapped: err}
}

// NewKeyUsageError is returned when a certificate's key usage does not permit signing messages.
//
// The returned error will have code ErrCodeKeyUsage.
func NewKeyUsageError(msg string) error {
	return &CryptoError{code: ErrCodeKeyUsage, message: msg}
}

// NewCertificateError creates a certificate validation error.
// Use this for errors related to expired certificates, untrusted CAs,
// revoked certificates or certificate chain validation failures.
//
// The returned error will have code ErrCodeCertificate.
func NewCertificateError(msg string) error {
	return &CryptoError{code: ErrCodeCertificate, message: msg}
}

// WrapCertificateError wraps an existing error as a certificate error.
//
// The returned error will have code ErrCodeCertificate.
func WrapCertificateError(err error, msg string) error {
	return &CryptoError{code: ErrCodeCertificate, message: msg, wrapped: err}
}

// NewNoTrustedCertificatesError is returned when path validation is attempted without trust anchors.
//
// The returned error will have code ErrCodeNoTrustedCertificates.
func NewNoTrustedCertificatesError(msg string) error {
	return &CryptoError{code: ErrCodeNoTrustedCertificates, message: msg}
}

// NewResourceLimitError is returned when a candidate set grows beyond its configured limit.
//
// The returned error will have code ErrCodeResourceLimit.
func NewResourceLimitError(msg string) error {
	return &CryptoError{code: ErrCodeResourceLimit, message: msg}
}

// NewInternalError creates an internal error for unexpected failures.
// Use this for errors related to crypto library failures, unexpected nil values,
// or system errors that should not normally occur.
//
// The returned error will have code ErrCodeInternal.
func NewInternalError(msg string) error {
	return &CryptoError{code: ErrCodeInternal, message: msg}
}

// WrapInternalError wraps an existing error as an internal error.
//
// The returned error will have code ErrCodeInternal.
func WrapInternalError(err error, msg string) error {
	return &CryptoError{code: ErrCodeInternal, message: msg, wrapped: err}
}

// CodeOf returns the ErrorCode of err, or the empty code if err is not a crypto error.
func CodeOf(err error) ErrorCode {
	var cryptoErr Error
	if errors.As(err, &cryptoErr) {
		return cryptoErr.Code()
	}
	return ""
}
