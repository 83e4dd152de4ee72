package validation

// recovery.go implements the 3GPP TS 33.310 exception: a CA may send its root certificate in the
// extraCerts of an initialization response to a client that does not know it yet. With
// PermitTAInExtraCertsForIR set, the self-signed certificates in extraCerts are used as a
// temporary trust store for that one message.

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"log/slog"

	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/crypto"
)

// recoverTrustAnchor retries the sender candidates found by discovery against the self-signed
// extraCerts of an initialization response. Only when discovery found none is extraCerts searched
// for the sender. The certificate issued by the response must validate against the same anchors.
func recoverTrustAnchor(ctx *Context, msg *cmp.Message, candidates []*x509.Certificate, source CertSource,
	alg pkix.AlgorithmIdentifier, data, sig []byte, logger *slog.Logger) (*x509.Certificate, CertSource, error) {
	rep, ok := msg.Body.(*cmp.CertRepMessage)
	if !ok || rep.Kind != cmp.BodyIP {
		return nil, SourceNone, NewError(ErrCodeNoValidSenderCertificate, "trust-anchor recovery applies to initialization responses only")
	}

	anchors := crypto.NewTrustStore()
	for _, cert := range msg.ExtraCerts {
		if cert != nil && crypto.IsSelfSigned(cert) {
			anchors.Add(cert)
		}
	}
	if anchors.Len() == 0 {
		return nil, SourceNone, NewError(ErrCodeNoValidSenderCertificate, "no self-signed certificates in extraCerts")
	}
	anchors.SetParams(ctx.Trusted.Params())

	if len(candidates) == 0 {
		sender := msg.Header.Sender
		if !sender.IsDirectoryName() {
			return nil, SourceNone, NewError(ErrCodeNoValidSenderCertificate, "sender is not a directoryName")
		}
		found, err := crypto.FindByIdentity(msg.ExtraCerts, sender.DirectoryName, msg.Header.SenderKID, anchors.Params(), ctx.MaxCandidates)
		if err != nil {
			return nil, SourceNone, mapCryptoError(err, "trust-anchor recovery candidate discovery failed")
		}
		if len(found) == 0 {
			return nil, SourceNone, NewError(ErrCodeNoValidSenderCertificate, "no sender certificate in extraCerts")
		}
		candidates, source = found, SourceExtraCerts
	}

	issued := rep.IssuedCertificate()
	pathOpts := crypto.PathOptions{
		Trusted:      anchors,
		Untrusted:    intermediates(ctx.Untrusted, msg.ExtraCerts),
		CRLs:         ctx.CRLs,
		AcceptPolicy: ctx.AcceptPolicy,
		Logger:       logger,
	}

	var sigErr error
	for _, cand := range candidates {
		valid, err := crypto.ValidatePath(cand, pathOpts)
		if err != nil {
			return nil, SourceNone, mapCryptoError(err, "trust-anchor recovery path validation failed")
		}
		if !valid {
			continue
		}
		if issued == nil {
			return nil, SourceNone, NewError(ErrCodeNoValidSenderCertificate, "initialization response carries no issued certificate")
		}
		issuedValid, err := crypto.ValidatePath(issued, pathOpts)
		if err != nil {
			return nil, SourceNone, mapCryptoError(err, "issued certificate path validation failed")
		}
		if !issuedValid {
			logger.Debug("Issued certificate does not validate against extraCerts anchors",
				slog.String("subject", issued.Subject.String()))
			continue
		}
		if err := crypto.VerifySignature(cand, alg, data, sig, ctx.signatureOptions()); err != nil {
			sigErr = err
			continue
		}

		logger.Warn("Accepting sender certificate through trust-anchor recovery from extraCerts",
			slog.String("subject", cand.Subject.String()),
			slog.String("issued", issued.Subject.String()),
			slog.String("source", string(source)),
			slog.Int("anchors", anchors.Len()),
		)
		return cand, source, nil
	}

	if sigErr != nil {
		return nil, SourceNone, mapCryptoError(sigErr, "recovered sender certificate does not verify the signature")
	}
	return nil, SourceNone, NewError(ErrCodeNoValidSenderCertificate, "no sender certificate validates against extraCerts anchors")
}
