package api

// errors.go defines the error codes used by the validation service HTTP API

import "fmt"

// APIError represents a structured error from the api package.
type APIError struct {
	// code is the API error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *APIError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *APIError) Code() ErrorCode { return e.code }
func (e *APIError) Unwrap() error   { return e.wrapped }

// ErrorCode is used in error responses of the validation service.
//
// c.f https://developer.dcsa.org/standard-error-codes
type ErrorCode int

const (

	// ErrCodeBadSignature is used when the signature protecting a message does not verify
	ErrCodeBadSignature ErrorCode = 7001

	// ErrCodeBadCertificate is used when no acceptable sender certificate was found
	ErrCodeBadCertificate ErrorCode = 7002

	// ErrCodeBadMAC is used when the shared-secret MAC protecting a message does not verify
	ErrCodeBadMAC ErrorCode = 7003

	// ErrCodeMalformedMessage is used when the posted body is not a DER encoded PKIMessage
	ErrCodeMalformedMessage ErrorCode = 7004

	// ErrCodeInternalError is used when an internal server error occurs
	ErrCodeInternalError ErrorCode = 7005

	// ErrCodeMalformedRequest is used when the request itself is invalid (missing body, wrong media type etc)
	ErrCodeMalformedRequest ErrorCode = 7006

	// ErrCodeUnsupportedAlgorithm is used when the protection algorithm of a message is not supported
	ErrCodeUnsupportedAlgorithm ErrorCode = 7007

	// ErrCodeResourceLimit is used when validating a message would exceed a configured limit
	ErrCodeResourceLimit ErrorCode = 7008

	// ErrCodeRateLimitExceeded is used when the rate limit is exceeded
	// - this is only used in the middleware
	ErrCodeRateLimitExceeded ErrorCode = 7009

	// ErrCodeRequestTooLarge is used when the request body is too large
	// - this is only used in the middleware
	ErrCodeRequestTooLarge ErrorCode = 7010

	// ErrCodeUnknownProfile is used when the trust profile named in the request path is not configured
	ErrCodeUnknownProfile ErrorCode = 8001

	// ErrCodeUntrustedMessage is used when the message is well formed but its protection cannot be
	// trusted under the profile (unprotected, wrong key usage, no trust anchors)
	ErrCodeUntrustedMessage ErrorCode = 8002
)

// NewMalformedRequestError creates an error for malformed requests.
func NewMalformedRequestError(msg string) error {
	return &APIError{code: ErrCodeMalformedRequest, message: msg}
}

// WrapMalformedRequestError wraps an existing error as a malformed request error.
func WrapMalformedRequestError(err error, msg string) error {
	return &APIError{code: ErrCodeMalformedRequest, message: msg, wrapped: err}
}

// NewUnknownProfileError is used when a request names a profile that is not configured.
func NewUnknownProfileError(msg string) error {
	return &APIError{code: ErrCodeUnknownProfile, message: msg}
}

// NewRateLimitError creates an error for requests rejected by the rate limiter.
func NewRateLimitError(msg string) error {
	return &APIError{code: ErrCodeRateLimitExceeded, message: msg}
}

// NewRequestTooLargeError creates an error for request bodies above the configured limit.
func NewRequestTooLargeError(msg string) error {
	return &APIError{code: ErrCodeRequestTooLarge, message: msg}
}

// NewInternalError creates an internal error.
func NewInternalError(msg string) error {
	return &APIError{code: ErrCodeInternalError, message: msg}
}

// WrapInternalError wraps an existing error as an internal error.
func WrapInternalError(err error, msg string) error {
	return &APIError{code: ErrCodeInternalError, message: msg, wrapped: err}
}
