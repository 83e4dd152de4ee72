package validation

import (
	"crypto/x509"
	"log/slog"

	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/crypto"
)

// CertSource says where the sender certificate of a validated message came from.
type CertSource string

const (
	SourceNone       CertSource = ""
	SourcePinned     CertSource = "pinned"
	SourceCached     CertSource = "cached"
	SourceTrusted    CertSource = "trusted"
	SourceUntrusted  CertSource = "untrusted"
	SourceExtraCerts CertSource = "extraCerts"
)

// FindServerCertificate returns the candidate sender certificates for msg.
//
// The trusted store, the untrusted pool and the message's extraCerts are searched in that order
// and the candidates of the first source with any match are returned, together with that source.
// Sources are never merged. A sender that is not a directoryName has no candidates.
func FindServerCertificate(ctx *Context, msg *cmp.Message) ([]*x509.Certificate, CertSource, error) {
	sender := msg.Header.Sender
	if !sender.IsDirectoryName() {
		ctx.logger().Debug("Sender is not a directoryName, no candidate certificates",
			slog.String("sender", sender.String()))
		return nil, SourceNone, nil
	}

	params := ctx.Trusted.Params()
	sources := []struct {
		source CertSource
		pool   []*x509.Certificate
	}{
		{SourceTrusted, ctx.Trusted.Certificates()},
		{SourceUntrusted, ctx.Untrusted},
		{SourceExtraCerts, msg.ExtraCerts},
	}

	for _, s := range sources {
		candidates, err := crypto.FindByIdentity(s.pool, sender.DirectoryName, msg.Header.SenderKID, params, ctx.MaxCandidates)
		if err != nil {
			if crypto.CodeOf(err) == crypto.ErrCodeResourceLimit {
				return nil, SourceNone, WrapError(ErrCodeAllocationFailure, err, "candidate discovery aborted")
			}
			return nil, SourceNone, WrapError(ErrCodeInternal, err, "candidate discovery failed")
		}
		if len(candidates) > 0 {
			ctx.logger().Debug("Found candidate sender certificates",
				slog.String("source", string(s.source)),
				slog.Int("count", len(candidates)),
				slog.String("sender", sender.String()))
			return candidates, s.source, nil
		}
	}
	return nil, SourceNone, nil
}
