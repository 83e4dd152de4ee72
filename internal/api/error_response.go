package api

// error_response.go implements the DCSA standard error response format for the validation service.
// It maps lower level errors to the error response returned to the client.

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/logger"
	"github.com/information-sharing-networks/cmp-trust/internal/validation"
)

// ErrorResponse represents the DCSA error response format
type ErrorResponse struct {

	// The HTTP method used to make the request e.g. GET, POST, etc
	HTTPMethod string `json:"httpMethod"`

	// The URI that was requested
	RequestURI string `json:"requestUri"`

	// The HTTP status code returned
	StatusCode int `json:"statusCode"`

	// A standard short description corresponding to the HTTP status code
	StatusCodeText string `json:"statusCodeText"`

	// A long description corresponding to the HTTP status code with additional information
	StatusCodeMessage string `json:"statusCodeMessage,omitempty"`

	// A unique identifier to the HTTP request within the scope of the API provider
	ProviderCorrelationReference string `json:"providerCorrelationReference,omitempty"`

	// The DateTime corresponding to the error occurring
	ErrorDateTime string `json:"errorDateTime"`

	// An array of errors providing more detail about the root cause
	Errors []DetailedError `json:"errors"`
}

// DetailedError represents a detailed error in the DCSA error response
type DetailedError struct {
	// error code used on the platform: 7000-7999 for technical errors, 8000-8999 for functional errors
	ErrorCode        ErrorCode `json:"errorCode"`
	Property         string    `json:"property,omitempty"`
	Value            string    `json:"value,omitempty"`
	ErrorCodeText    string    `json:"errorCodeText"`
	ErrorCodeMessage string    `json:"errorCodeMessage"`
}

// RejectionProperty is the DetailedError property carrying the validation code of a rejected message.
const RejectionProperty = "validationCode"

// MapErrorToResponse maps api, validation, cmp or generic errors to a DCSA error response.
//
// The mapping also establishes the appropriate HTTP status code based on the error type.
// Rejected messages are reported with 422 and the validation code (e.g. BSIG) in the
// detailed error.
func MapErrorToResponse(err error, r *http.Request) *ErrorResponse {
	requestID := middleware.GetReqID(r.Context())

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return errorResponseFromAPI(apiErr, r, requestID)
	}

	var validationErr *validation.ValidationError
	if errors.As(err, &validationErr) {
		return errorResponseFromValidation(validationErr, r, requestID)
	}

	var cmpErr *cmp.CMPError
	if errors.As(err, &cmpErr) {
		return errorResponseFromCMP(cmpErr, r, requestID)
	}

	// fallback - not expected; log the unmapped error and return an internal error response
	reqLogger := logger.ContextRequestLogger(r.Context())
	reqLogger.Error("BUG: Unmapped error type in MapErrorToResponse",
		slog.String("error_type", fmt.Sprintf("%T", err)),
		slog.String("error", err.Error()),
		slog.String("request_id", requestID),
	)
	return newErrorResponse(r, requestID, http.StatusInternalServerError, DetailedError{
		ErrorCode:        ErrCodeInternalError,
		ErrorCodeText:    "Internal Error",
		ErrorCodeMessage: "An internal error occurred",
	})
}

func newErrorResponse(r *http.Request, requestID string, statusCode int, detail DetailedError) *ErrorResponse {
	return &ErrorResponse{
		HTTPMethod:                   r.Method,
		RequestURI:                   r.RequestURI,
		StatusCode:                   statusCode,
		StatusCodeText:               http.StatusText(statusCode),
		StatusCodeMessage:            detail.ErrorCodeText,
		ProviderCorrelationReference: requestID,
		ErrorDateTime:                time.Now().UTC().Format(time.RFC3339),
		Errors:                       []DetailedError{detail},
	}
}

func errorResponseFromAPI(err *APIError, r *http.Request, requestID string) *ErrorResponse {
	var statusCode int
	var errorCodeText string

	switch err.Code() {
	case ErrCodeMalformedRequest:
		statusCode = http.StatusBadRequest
		errorCodeText = "Malformed request"
	case ErrCodeUnknownProfile:
		statusCode = http.StatusNotFound
		errorCodeText = "Unknown profile"
	case ErrCodeRateLimitExceeded:
		statusCode = http.StatusTooManyRequests
		errorCodeText = "Rate limit exceeded"
	case ErrCodeRequestTooLarge:
		statusCode = http.StatusRequestEntityTooLarge
		errorCodeText = "Request too large"
	default:
		statusCode = http.StatusInternalServerError
		errorCodeText = "Internal Error"
	}

	return newErrorResponse(r, requestID, statusCode, DetailedError{
		ErrorCode:        err.Code(),
		ErrorCodeText:    errorCodeText,
		ErrorCodeMessage: err.Error(),
	})
}

// errorResponseFromValidation maps a rejected message to a 422 response.
// Internal validation failures are 500s and their details are not returned to the client.
func errorResponseFromValidation(err *validation.ValidationError, r *http.Request, requestID string) *ErrorResponse {
	statusCode := http.StatusUnprocessableEntity
	var errorCode ErrorCode
	var errorCodeText string

	switch err.Code() {
	case validation.ErrCodeSignatureMismatch:
		errorCode = ErrCodeBadSignature
		errorCodeText = "Bad signature"
	case validation.ErrCodeNoValidSenderCertificate:
		errorCode = ErrCodeBadCertificate
		errorCodeText = "No valid sender certificate"
	case validation.ErrCodeMACMismatch:
		errorCode = ErrCodeBadMAC
		errorCodeText = "Bad MAC"
	case validation.ErrCodeEncoding:
		errorCode = ErrCodeMalformedMessage
		errorCodeText = "Protected part could not be encoded"
	case validation.ErrCodeUnsupportedAlgorithm:
		errorCode = ErrCodeUnsupportedAlgorithm
		errorCodeText = "Unsupported algorithm"
	case validation.ErrCodeAllocationFailure:
		errorCode = ErrCodeResourceLimit
		errorCodeText = "Too many candidate certificates"
	case validation.ErrCodeUnprotected:
		errorCode = ErrCodeUntrustedMessage
		errorCodeText = "Unprotected message"
	case validation.ErrCodeWrongKeyUsage:
		errorCode = ErrCodeUntrustedMessage
		errorCodeText = "Wrong key usage"
	case validation.ErrCodeNoTrustedCertificates:
		errorCode = ErrCodeUntrustedMessage
		errorCodeText = "No trusted certificates configured"
	default:
		return newErrorResponse(r, requestID, http.StatusInternalServerError, DetailedError{
			ErrorCode:        ErrCodeInternalError,
			ErrorCodeText:    "Internal Error",
			ErrorCodeMessage: "An internal error occurred",
		})
	}

	return newErrorResponse(r, requestID, statusCode, DetailedError{
		ErrorCode:        errorCode,
		Property:         RejectionProperty,
		Value:            string(err.Code()),
		ErrorCodeText:    errorCodeText,
		ErrorCodeMessage: err.Error(),
	})
}

func errorResponseFromCMP(err *cmp.CMPError, r *http.Request, requestID string) *ErrorResponse {
	if err.Code() == cmp.ErrCodeDecoding {
		return newErrorResponse(r, requestID, http.StatusBadRequest, DetailedError{
			ErrorCode:        ErrCodeMalformedMessage,
			ErrorCodeText:    "Malformed PKIMessage",
			ErrorCodeMessage: err.Error(),
		})
	}
	return newErrorResponse(r, requestID, http.StatusInternalServerError, DetailedError{
		ErrorCode:        ErrCodeInternalError,
		ErrorCodeText:    "Internal Error",
		ErrorCodeMessage: "An internal error occurred",
	})
}
