package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/information-sharing-networks/cmp-trust/internal/crypto"
)

func TestValidationError(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(ErrCodeSignatureMismatch, cause, "signature check failed")

	if got, want := err.Error(), "BSIG: signature check failed: boom"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped error to be reachable with errors.Is")
	}
	if got := CodeOf(fmt.Errorf("context: %w", err)); got != ErrCodeSignatureMismatch {
		t.Errorf("expected code %s through fmt wrapping, got %s", ErrCodeSignatureMismatch, got)
	}
	if got := CodeOf(cause); got != "" {
		t.Errorf("expected empty code for plain error, got %s", got)
	}
	if got := NewError(ErrCodeUnprotected, "no protection").Error(); got != "UNPR: no protection" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestMapCryptoError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{crypto.NewKeyUsageError("ku"), ErrCodeWrongKeyUsage},
		{crypto.NewUnsupportedAlgorithmError("alg"), ErrCodeUnsupportedAlgorithm},
		{crypto.NewValidationError("params"), ErrCodeUnsupportedAlgorithm},
		{crypto.NewSignatureError("sig"), ErrCodeSignatureMismatch},
		{crypto.NewNoTrustedCertificatesError("empty"), ErrCodeNoTrustedCertificates},
		{crypto.NewResourceLimitError("limit"), ErrCodeAllocationFailure},
		{crypto.NewInternalError("oops"), ErrCodeInternal},
		{errors.New("plain"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.want)+"/"+tt.err.Error(), func(t *testing.T) {
			got := mapCryptoError(tt.err, "mapped")
			if CodeOf(got) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, CodeOf(got))
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("expected the crypto error to be wrapped")
			}
		})
	}
}
