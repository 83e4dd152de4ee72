package crypto

// signature.go - public key protection of CMP messages

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"log/slog"

	"github.com/cloudflare/circl/sign/ed448"
)

// SignatureOptions controls VerifySignature.
type SignatureOptions struct {

	// AllowCertSignKeyUsage accepts a certificate whose key usage includes keyCertSign but not
	// digitalSignature. A warning is logged when the relaxation is used.
	AllowCertSignKeyUsage bool

	// Logger receives the relaxation warning. slog.Default() is used when nil.
	Logger *slog.Logger
}

// VerifySignature verifies sig over data with the public key of cert, using the signature
// algorithm alg.
//
// The certificate's key usage, when present, must permit digital signatures (see
// SignatureOptions.AllowCertSignKeyUsage). Errors carry ErrCodeKeyUsage,
// ErrCodeUnsupportedAlgorithm or ErrCodeInvalidSignature.
func VerifySignature(cert *x509.Certificate, alg pkix.AlgorithmIdentifier, data, sig []byte, opts SignatureOptions) error {
	if cert == nil {
		return NewInternalError("no certificate supplied for signature verification")
	}
	if err := CheckSigningKeyUsage(cert, opts); err != nil {
		return err
	}

	r, err := resolveSignature(alg)
	if err != nil {
		return err
	}

	switch r.Scheme {
	case SchemeRSA, SchemeRSAPSS:
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return keyMismatch(cert, r)
		}
		digest := r.Digest.Sum(data)
		if r.Scheme == SchemeRSA {
			err = rsa.VerifyPKCS1v15(pub, r.Digest.Hash, digest, sig)
		} else {
			err = rsa.VerifyPSS(pub, r.Digest.Hash, digest, sig, &rsa.PSSOptions{SaltLength: r.saltLength, Hash: r.Digest.Hash})
		}
		if err != nil {
			return WrapSignatureError(err, fmt.Sprintf("%s signature verification failed", r.Name))
		}

	case SchemeECDSA:
		pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return keyMismatch(cert, r)
		}
		if !ecdsa.VerifyASN1(pub, r.Digest.Sum(data), sig) {
			return NewSignatureError(fmt.Sprintf("%s signature verification failed", r.Name))
		}

	case SchemeEd25519:
		pub, ok := cert.PublicKey.(ed25519.PublicKey)
		if !ok {
			return keyMismatch(cert, r)
		}
		if !ed25519.Verify(pub, data, sig) {
			return NewSignatureError("Ed25519 signature verification failed")
		}

	case SchemeEd448:
		pub, err := ed448PublicKey(cert)
		if err != nil {
			return err
		}
		if !ed448.Verify(pub, data, sig, "") {
			return NewSignatureError("Ed448 signature verification failed")
		}

	default:
		return NewUnsupportedAlgorithmError(fmt.Sprintf("unsupported signature scheme for %s", alg.Algorithm))
	}
	return nil
}

// CheckSigningKeyUsage rejects certificates whose key usage excludes digitalSignature.
// A certificate without the key usage extension is accepted.
func CheckSigningKeyUsage(cert *x509.Certificate, opts SignatureOptions) error {
	if cert.KeyUsage == 0 || cert.KeyUsage&x509.KeyUsageDigitalSignature != 0 {
		return nil
	}
	if cert.KeyUsage&x509.KeyUsageCertSign != 0 && opts.AllowCertSignKeyUsage {
		logger := opts.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("Accepting certificate with keyCertSign but without digitalSignature key usage",
			slog.String("subject", cert.Subject.String()),
			slog.String("serial", cert.SerialNumber.String()),
		)
		return nil
	}
	return NewKeyUsageError(fmt.Sprintf("key usage of certificate %q does not allow digital signatures", cert.Subject.String()))
}

func keyMismatch(cert *x509.Certificate, r resolvedSignature) error {
	return NewSignatureError(fmt.Sprintf("certificate key type %s cannot verify %s signatures", cert.PublicKeyAlgorithm, r.Name))
}

// subjectPublicKeyInfo is used for keys the standard library does not parse.
type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// ed448PublicKey extracts an Ed448 key from the certificate's SubjectPublicKeyInfo;
// crypto/x509 leaves PublicKey nil for this algorithm.
func ed448PublicKey(cert *x509.Certificate) (ed448.PublicKey, error) {
	var spki subjectPublicKeyInfo
	rest, err := asn1.Unmarshal(cert.RawSubjectPublicKeyInfo, &spki)
	if err != nil || len(rest) != 0 {
		return nil, NewSignatureError("failed to parse certificate public key for Ed448")
	}
	if !spki.Algorithm.Algorithm.Equal(OIDSignatureEd448) {
		return nil, NewSignatureError(fmt.Sprintf("certificate key algorithm %s cannot verify Ed448 signatures", spki.Algorithm.Algorithm))
	}
	if spki.PublicKey.BitLength != ed448.PublicKeySize*8 {
		return nil, NewSignatureError("invalid Ed448 public key length")
	}
	return ed448.PublicKey(spki.PublicKey.Bytes), nil
}

// Sign signs data with signer using the signature algorithm alg, producing a value
// VerifySignature accepts. Tools and tests use it to protect messages they build.
func Sign(signer crypto.Signer, alg pkix.AlgorithmIdentifier, data []byte) ([]byte, error) {
	r, err := resolveSignature(alg)
	if err != nil {
		return nil, err
	}

	var (
		digest []byte
		opts   crypto.SignerOpts = crypto.Hash(0)
	)
	switch r.Scheme {
	case SchemeRSA, SchemeECDSA:
		digest = r.Digest.Sum(data)
		opts = r.Digest.Hash
	case SchemeRSAPSS:
		digest = r.Digest.Sum(data)
		opts = &rsa.PSSOptions{SaltLength: r.saltLength, Hash: r.Digest.Hash}
	case SchemeEd25519, SchemeEd448:
		digest = data
	}

	sig, err := signer.Sign(rand.Reader, digest, opts)
	if err != nil {
		return nil, WrapInternalError(err, fmt.Sprintf("failed to create %s signature", r.Name))
	}
	return sig, nil
}
