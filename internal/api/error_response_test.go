package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/validation"
)

func TestMapErrorToResponse(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantStatus     int
		wantCode       ErrorCode
		wantValidation string
	}{
		{"malformed request", NewMalformedRequestError("empty body"), http.StatusBadRequest, ErrCodeMalformedRequest, ""},
		{"unknown profile", NewUnknownProfileError("no such profile"), http.StatusNotFound, ErrCodeUnknownProfile, ""},
		{"rate limit", NewRateLimitError("slow down"), http.StatusTooManyRequests, ErrCodeRateLimitExceeded, ""},
		{"too large", NewRequestTooLargeError("too big"), http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, ""},
		{"api internal", WrapInternalError(errors.New("boom"), "failed"), http.StatusInternalServerError, ErrCodeInternalError, ""},
		{"bad signature", validation.NewError(validation.ErrCodeSignatureMismatch, "sig"), http.StatusUnprocessableEntity, ErrCodeBadSignature, "BSIG"},
		{"no sender cert", validation.NewError(validation.ErrCodeNoValidSenderCertificate, "none"), http.StatusUnprocessableEntity, ErrCodeBadCertificate, "NVSC"},
		{"bad mac", validation.NewError(validation.ErrCodeMACMismatch, "mac"), http.StatusUnprocessableEntity, ErrCodeBadMAC, "BMAC"},
		{"unprotected", validation.NewError(validation.ErrCodeUnprotected, "none"), http.StatusUnprocessableEntity, ErrCodeUntrustedMessage, "UNPR"},
		{"no trust anchors", validation.NewError(validation.ErrCodeNoTrustedCertificates, "empty"), http.StatusUnprocessableEntity, ErrCodeUntrustedMessage, "NTRC"},
		{"key usage", validation.NewError(validation.ErrCodeWrongKeyUsage, "ku"), http.StatusUnprocessableEntity, ErrCodeUntrustedMessage, "BKU"},
		{"unsupported algorithm", validation.NewError(validation.ErrCodeUnsupportedAlgorithm, "alg"), http.StatusUnprocessableEntity, ErrCodeUnsupportedAlgorithm, "UALG"},
		{"allocation", validation.NewError(validation.ErrCodeAllocationFailure, "limit"), http.StatusUnprocessableEntity, ErrCodeResourceLimit, "ALLC"},
		{"validation internal", validation.NewError(validation.ErrCodeInternal, "bug"), http.StatusInternalServerError, ErrCodeInternalError, ""},
		{"decoding", cmp.NewDecodingError("truncated"), http.StatusBadRequest, ErrCodeMalformedMessage, ""},
		{"encoding", cmp.NewEncodingError("bad"), http.StatusInternalServerError, ErrCodeInternalError, ""},
		{"unmapped", errors.New("plain"), http.StatusInternalServerError, ErrCodeInternalError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/profiles/test/validate", nil)
			resp := MapErrorToResponse(tt.err, r)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if len(resp.Errors) != 1 {
				t.Fatalf("expected one detailed error, got %d", len(resp.Errors))
			}
			detail := resp.Errors[0]
			if detail.ErrorCode != tt.wantCode {
				t.Errorf("expected error code %d, got %d", tt.wantCode, detail.ErrorCode)
			}
			if detail.Value != tt.wantValidation {
				t.Errorf("expected validation code %q, got %q", tt.wantValidation, detail.Value)
			}
			if resp.HTTPMethod != http.MethodPost || resp.ErrorDateTime == "" {
				t.Errorf("request details missing from %+v", resp)
			}
		})
	}
}

func TestRespondWithErrorResponse(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/profiles/x/validate", nil)
	w := httptest.NewRecorder()

	RespondWithErrorResponse(w, r, validation.NewError(validation.ErrCodeSignatureMismatch, "signature does not verify"))

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Errors[0].Property != RejectionProperty || resp.Errors[0].Value != "BSIG" {
		t.Errorf("unexpected detail %+v", resp.Errors[0])
	}
}
