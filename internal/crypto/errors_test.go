package crypto

import (
	"errors"
	"fmt"
	"testing"
)

// check to ensure error code handling has not been broken
func TestCryptoError_Code(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{"validation", NewValidationError("test"), ErrCodeValidation},
		{"unsupported_algorithm", NewUnsupportedAlgorithmError("test"), ErrCodeUnsupportedAlgorithm},
		{"mac", NewMACError("test"), ErrCodeInvalidMAC},
		{"signature", NewSignatureError("test"), ErrCodeInvalidSignature},
		{"key_usage", NewKeyUsageError("test"), ErrCodeKeyUsage},
		{"certificate", NewCertificateError("test"), ErrCodeCertificate},
		{"no_trusted_certificates", NewNoTrustedCertificatesError("test"), ErrCodeNoTrustedCertificates},
		{"resource_limit", NewResourceLimitError("test"), ErrCodeResourceLimit},
		{"internal", NewInternalError("test"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cryptoErr *CryptoError
			if !errors.As(tt.err, &cryptoErr) {
				t.Fatal("error is not a CryptoError")
			}
			if cryptoErr.Code() != tt.wantCode {
				t.Errorf("Code() = %q, want %q", cryptoErr.Code(), tt.wantCode)
			}
			if got := CodeOf(fmt.Errorf("context: %w", tt.err)); got != tt.wantCode {
				t.Errorf("CodeOf() through wrapping = %q, want %q", got, tt.wantCode)
			}
		})
	}

	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf() of a plain error = %q, want empty", got)
	}
}

func TestCryptoError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := WrapSignatureError(cause, "outer")
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable with errors.Is")
	}
	if err.Error() != "outer: cause" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
