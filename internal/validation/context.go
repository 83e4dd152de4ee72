package validation

import (
	"crypto/x509"
	"log/slog"

	"github.com/information-sharing-networks/cmp-trust/internal/crypto"
)

// Context is the per-transaction state used to validate the messages of one CMP transaction.
//
// Create one Context per transaction and validate the messages in transaction order: later
// messages (e.g. a pkiconf without extraCerts) rely on ValidatedSenderCert set by earlier ones.
type Context struct {

	// Trusted holds the trust anchors and the verification time parameters
	Trusted *crypto.TrustStore

	// Untrusted are intermediate certificates and candidate sender certificates supplied by the operator
	Untrusted []*x509.Certificate

	// CRLs are consulted during path validation when set
	CRLs []*x509.RevocationList

	// AcceptPolicy, when set, makes the final decision on every path validation
	AcceptPolicy crypto.AcceptPolicy

	// SharedSecret verifies MAC protected messages
	SharedSecret []byte

	// PinnedCert is the known sender certificate. When set no discovery or path validation takes place.
	PinnedCert *x509.Certificate

	// PermitTAInExtraCertsForIR enables the 3GPP exception: for initialization responses, self-signed
	// certificates in extraCerts may act as trust anchors
	PermitTAInExtraCertsForIR bool

	// AllowCertSignKeyUsage accepts sender certificates with keyCertSign but without digitalSignature key usage
	AllowCertSignKeyUsage bool

	// MaxCandidates bounds the candidate set of a single discovery; 0 means crypto.DefaultMaxCandidates
	MaxCandidates int

	// Logger receives decision logs. slog.Default() is used when nil.
	Logger *slog.Logger

	// ValidatedSenderCert is the sender certificate validated by an earlier message of this transaction.
	// ValidateMessage sets it after a successful signature validation.
	ValidatedSenderCert *x509.Certificate
}

func (c *Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Context) signatureOptions() crypto.SignatureOptions {
	return crypto.SignatureOptions{
		AllowCertSignKeyUsage: c.AllowCertSignKeyUsage,
		Logger:                c.logger(),
	}
}

// Reset clears the cached sender certificate, e.g. when a transaction ends.
func (c *Context) Reset() {
	c.ValidatedSenderCert = nil
}
