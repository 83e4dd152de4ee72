package validation

// validate.go decides whether a received CMP message can be trusted.
//
// # Protection
//
// The protection algorithm in the header selects the scheme:
//
//   - PasswordBasedMac and PBMAC1 are verified with the shared secret of the Context.
//   - Signature algorithms are verified with the sender certificate.
//
// # Sender certificate selection
//
// The sender certificate is taken from the first of these that applies:
//
//  1. the pinned certificate of the Context (no path validation)
//  2. the certificate validated by an earlier message of the transaction, when its subject
//     equals the sender of this message (no path validation)
//  3. the first discovered candidate whose path validates and whose key verifies the signature
//  4. for initialization responses only, and only when PermitTAInExtraCertsForIR is set,
//     a candidate that validates against the self-signed certificates in extraCerts
//
// The certificate is cached in the Context only after the signature has been verified.

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"log/slog"

	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/crypto"
)

// Result describes an accepted message.
type Result struct {

	// Method is the protection scheme that was verified
	Method crypto.ProtectionKind

	// SenderCert is the certificate whose key verified the signature (nil for MAC protection)
	SenderCert *x509.Certificate

	// Source says where SenderCert came from
	Source CertSource

	// Recovered is true when the sender certificate was accepted through trust-anchor recovery
	Recovered bool
}

// ValidateMessage verifies the protection of msg using the state in ctx.
//
// It returns a Result when the message is trusted and an Error otherwise. On success with
// signature protection ctx.ValidatedSenderCert is set to the sender certificate.
func ValidateMessage(ctx *Context, msg *cmp.Message) (*Result, error) {
	if ctx == nil {
		return nil, NewError(ErrCodeInternal, "no validation context")
	}
	if msg == nil {
		return nil, NewError(ErrCodeInternal, "no message")
	}
	logger := ctx.logger().With(
		slog.String("transaction_id", msg.Header.TransactionIDString()),
		slog.String("body_type", msg.BodyType().String()),
	)

	// Step 1: the message must be protected by a known algorithm
	if !msg.IsProtected() {
		logger.Debug("Rejecting unprotected message")
		return nil, NewError(ErrCodeUnprotected, "message is not protected")
	}
	if msg.Header.ProtectionAlg == nil {
		return nil, NewError(ErrCodeUnsupportedAlgorithm, "message has protection but no protectionAlg")
	}
	alg := *msg.Header.ProtectionAlg

	// Step 2: the bytes covered by the protection
	data, err := msg.ProtectedPart()
	if err != nil {
		return nil, WrapError(ErrCodeEncoding, err, "failed to encode protected part")
	}

	// Step 3: verify the protection
	switch kind := crypto.ClassifyProtection(alg); kind {
	case crypto.ProtectionMAC:
		if err := verifyMACProtection(ctx, msg, alg, data); err != nil {
			logger.Debug("MAC protection rejected", slog.String("error", err.Error()))
			return nil, err
		}
		logger.Debug("MAC protection verified", slog.String("algorithm", alg.Algorithm.String()))
		return &Result{Method: crypto.ProtectionMAC}, nil

	case crypto.ProtectionSignature:
		result, err := verifySignatureProtection(ctx, msg, alg, data, logger)
		if err != nil {
			logger.Debug("Signature protection rejected", slog.String("error", err.Error()))
			return nil, err
		}
		ctx.ValidatedSenderCert = result.SenderCert
		logger.Debug("Signature protection verified",
			slog.String("algorithm", alg.Algorithm.String()),
			slog.String("sender_cert", result.SenderCert.Subject.String()),
			slog.String("source", string(result.Source)),
		)
		return result, nil

	default:
		return nil, NewError(ErrCodeUnsupportedAlgorithm,
			fmt.Sprintf("unsupported protection algorithm %s", alg.Algorithm))
	}
}

func verifyMACProtection(ctx *Context, msg *cmp.Message, alg pkix.AlgorithmIdentifier, data []byte) error {
	if alg.Algorithm.Equal(crypto.OIDDHBasedMAC) {
		return NewError(ErrCodeUnsupportedAlgorithm, "DHBasedMac protection is not supported")
	}
	if len(ctx.SharedSecret) == 0 {
		return NewError(ErrCodeMACMismatch, "no shared secret configured for MAC protected message")
	}
	if msg.Protection.BitLength%8 != 0 {
		return NewError(ErrCodeMACMismatch, "protection value is not a whole number of bytes")
	}

	err := crypto.VerifyMAC(alg, ctx.SharedSecret, data, msg.Protection.Bytes)
	switch crypto.CodeOf(err) {
	case "":
		if err != nil {
			return WrapError(ErrCodeInternal, err, "MAC verification failed")
		}
		return nil
	case crypto.ErrCodeUnsupportedAlgorithm:
		return WrapError(ErrCodeUnsupportedAlgorithm, err, "unsupported MAC algorithm")
	case crypto.ErrCodeInvalidMAC, crypto.ErrCodeValidation:
		return WrapError(ErrCodeMACMismatch, err, "MAC verification failed")
	default:
		return WrapError(ErrCodeInternal, err, "MAC verification failed")
	}
}

func verifySignatureProtection(ctx *Context, msg *cmp.Message, alg pkix.AlgorithmIdentifier, data []byte, logger *slog.Logger) (*Result, error) {
	if _, err := crypto.LookupSignatureAlgorithm(alg); err != nil {
		return nil, mapCryptoError(err, "unsupported signature algorithm")
	}
	if msg.Protection.BitLength%8 != 0 {
		return nil, NewError(ErrCodeSignatureMismatch, "protection value is not a whole number of bytes")
	}
	sig := msg.Protection.Bytes
	opts := ctx.signatureOptions()

	// Step 1: a pinned certificate is used as is
	if ctx.PinnedCert != nil {
		if err := crypto.VerifySignature(ctx.PinnedCert, alg, data, sig, opts); err != nil {
			return nil, mapCryptoError(err, "signature does not verify with the pinned certificate")
		}
		return &Result{Method: crypto.ProtectionSignature, SenderCert: ctx.PinnedCert, Source: SourcePinned}, nil
	}

	// Step 2: the certificate validated earlier in this transaction. It is only replaced on success.
	if cached := ctx.ValidatedSenderCert; cached != nil {
		if cachedCertMatches(ctx, msg, cached) {
			err := crypto.VerifySignature(cached, alg, data, sig, opts)
			if err == nil {
				return &Result{Method: crypto.ProtectionSignature, SenderCert: cached, Source: SourceCached}, nil
			}
			logger.Debug("Cached sender certificate does not verify the message",
				slog.String("subject", cached.Subject.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	// Step 3: discovery and path validation
	candidates, source, err := FindServerCertificate(ctx, msg)
	if err != nil {
		return nil, err
	}

	var (
		pathValid bool
		noTrust   bool
		sigErr    error
	)
	pathOpts := crypto.PathOptions{
		Trusted:      ctx.Trusted,
		Untrusted:    intermediates(ctx.Untrusted, msg.ExtraCerts),
		CRLs:         ctx.CRLs,
		AcceptPolicy: ctx.AcceptPolicy,
		Logger:       logger,
	}
	for _, cand := range candidates {
		valid, err := crypto.ValidatePath(cand, pathOpts)
		if err != nil {
			if crypto.CodeOf(err) == crypto.ErrCodeNoTrustedCertificates {
				noTrust = true
				break
			}
			return nil, mapCryptoError(err, "path validation failed")
		}
		if !valid {
			continue
		}
		pathValid = true
		if err := crypto.VerifySignature(cand, alg, data, sig, opts); err != nil {
			logger.Debug("Candidate with valid path does not verify the signature",
				slog.String("subject", cand.Subject.String()),
				slog.String("error", err.Error()),
			)
			sigErr = err
			continue
		}
		return &Result{Method: crypto.ProtectionSignature, SenderCert: cand, Source: source}, nil
	}

	// Step 4: trust-anchor recovery for initialization responses
	if ctx.PermitTAInExtraCertsForIR && msg.BodyType() == cmp.BodyIP {
		cert, recoveredFrom, err := recoverTrustAnchor(ctx, msg, candidates, source, alg, data, sig, logger)
		if err == nil {
			return &Result{Method: crypto.ProtectionSignature, SenderCert: cert, Source: recoveredFrom, Recovered: true}, nil
		}
		logger.Debug("Trust-anchor recovery failed", slog.String("error", err.Error()))
		if code := CodeOf(err); !pathValid && (code == ErrCodeSignatureMismatch || code == ErrCodeWrongKeyUsage) {
			return nil, err
		}
	}

	switch {
	case pathValid && sigErr != nil:
		return nil, mapCryptoError(sigErr, "no candidate sender certificate verifies the signature")
	case noTrust:
		return nil, NewError(ErrCodeNoTrustedCertificates, "no trusted certificates configured")
	case len(candidates) == 0:
		return nil, NewError(ErrCodeNoValidSenderCertificate,
			fmt.Sprintf("no candidate certificate found for sender %s", msg.Header.Sender))
	default:
		return nil, NewError(ErrCodeNoValidSenderCertificate,
			fmt.Sprintf("none of %d candidate certificates for sender %s validated", len(candidates), msg.Header.Sender))
	}
}

// cachedCertMatches reports whether the certificate validated earlier may be reused for msg.
func cachedCertMatches(ctx *Context, msg *cmp.Message, cert *x509.Certificate) bool {
	sender := msg.Header.Sender
	if !sender.IsDirectoryName() || !crypto.NamesEqual(cert.RawSubject, sender.DirectoryName) {
		return false
	}
	return ctx.Trusted.Params().ValidAt(cert)
}

func intermediates(pools ...[]*x509.Certificate) []*x509.Certificate {
	var certs []*x509.Certificate
	for _, pool := range pools {
		certs = append(certs, pool...)
	}
	return certs
}

// mapCryptoError converts a crypto package error into a validation error.
func mapCryptoError(err error, msg string) error {
	switch crypto.CodeOf(err) {
	case crypto.ErrCodeKeyUsage:
		return WrapError(ErrCodeWrongKeyUsage, err, msg)
	case crypto.ErrCodeUnsupportedAlgorithm, crypto.ErrCodeValidation:
		return WrapError(ErrCodeUnsupportedAlgorithm, err, msg)
	case crypto.ErrCodeInvalidSignature:
		return WrapError(ErrCodeSignatureMismatch, err, msg)
	case crypto.ErrCodeNoTrustedCertificates:
		return WrapError(ErrCodeNoTrustedCertificates, err, msg)
	case crypto.ErrCodeResourceLimit:
		return WrapError(ErrCodeAllocationFailure, err, msg)
	default:
		return WrapError(ErrCodeInternal, err, msg)
	}
}
