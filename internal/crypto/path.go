package crypto

import (
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// maxNoCheckTimeAttempts bounds the extra verification times tried when time checks are disabled.
const maxNoCheckTimeAttempts = 32

// PathResult is the outcome of chain building before any accept policy is applied.
type PathResult struct {

	// Valid is true when at least one chain to a trust anchor was built and no
	// certificate in it is revoked
	Valid bool

	// Chains are the chains that were built, target first and trust anchor last
	Chains [][]*x509.Certificate

	// Err explains why the path is not valid
	Err error
}

// AcceptPolicy receives the raw result of path validation and returns the final verdict.
// It may accept paths the validator rejected or reject paths it accepted.
type AcceptPolicy func(target *x509.Certificate, result PathResult) bool

// PathOptions are the inputs of ValidatePath besides the target certificate.
type PathOptions struct {
	Trusted      *TrustStore
	Untrusted    []*x509.Certificate
	CRLs         []*x509.RevocationList
	AcceptPolicy AcceptPolicy
	Logger       *slog.Logger
}

// ValidatePath reports whether a chain can be built from target to a certificate in
// opts.Trusted, using opts.Untrusted as intermediates and consulting opts.CRLs.
//
// Validation failures are reported as false, never as an error. An error with
// ErrCodeNoTrustedCertificates is returned when the trust store is empty.
func ValidatePath(target *x509.Certificate, opts PathOptions) (bool, error) {
	if target == nil {
		return false, NewInternalError("no target certificate for path validation")
	}
	if opts.Trusted.Len() == 0 {
		return false, NewNoTrustedCertificatesError("no trusted certificates configured")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := buildPath(target, opts)

	verdict := result.Valid
	if opts.AcceptPolicy != nil {
		verdict = opts.AcceptPolicy(target, result)
		if verdict != result.Valid {
			logger.Debug("Accept policy overrode path validation result",
				slog.String("subject", target.Subject.String()),
				slog.Bool("validator", result.Valid),
				slog.Bool("policy", verdict),
			)
		}
	}
	if !verdict && result.Err != nil {
		logger.Debug("Path validation failed",
			slog.String("subject", target.Subject.String()),
			slog.String("error", result.Err.Error()),
		)
	}
	return verdict, nil
}

func buildPath(target *x509.Certificate, opts PathOptions) PathResult {
	intermediates := x509.NewCertPool()
	for _, cert := range opts.Untrusted {
		if cert != nil {
			intermediates.AddCert(cert)
		}
	}

	verifyOpts := x509.VerifyOptions{
		Roots:         opts.Trusted.pool(),
		Intermediates: intermediates,
		CurrentTime:   opts.Trusted.Params().verificationTime(target),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	chains, err := target.Verify(verifyOpts)
	if err != nil && opts.Trusted.Params().NoCheckTime && isTimeError(err) {
		for _, t := range noCheckTimeInstants(target, opts, verifyOpts.CurrentTime) {
			verifyOpts.CurrentTime = t
			if chains, err = target.Verify(verifyOpts); err == nil {
				break
			}
		}
	}
	if err != nil {
		return PathResult{Err: WrapCertificateError(err, "certificate chain validation failed")}
	}
	if len(chains) == 0 {
		return PathResult{Err: NewCertificateError("no valid certificate chains found")}
	}

	result := PathResult{Chains: chains}
	if len(opts.CRLs) == 0 {
		result.Valid = true
		return result
	}

	var revocationErrs []error
	for _, chain := range chains {
		if err := checkRevocation(chain, opts.CRLs); err != nil {
			revocationErrs = append(revocationErrs, err)
			continue
		}
		result.Valid = true
		return result
	}
	result.Err = errors.Join(revocationErrs...)
	return result
}

func isTimeError(err error) bool {
	var invalid x509.CertificateInvalidError
	return errors.As(err, &invalid) && invalid.Reason == x509.Expired
}

// noCheckTimeInstants returns the verification times to try when the middle of the target's
// validity is outside the validity of an anchor or intermediate. The validity bounds of all
// certificates split the target's validity into intervals in which the same certificates are
// valid; the middle of each interval is returned. A chain whose certificates share no common
// instant of validity is still rejected.
func noCheckTimeInstants(target *x509.Certificate, opts PathOptions, tried time.Time) []time.Time {
	bounds := []time.Time{target.NotBefore, target.NotAfter}
	within := func(t time.Time) bool { return t.After(target.NotBefore) && t.Before(target.NotAfter) }
	for _, cert := range slices.Concat(opts.Trusted.Certificates(), opts.Untrusted) {
		if cert == nil {
			continue
		}
		for _, t := range []time.Time{cert.NotBefore, cert.NotAfter} {
			if within(t) {
				bounds = append(bounds, t)
			}
		}
	}
	slices.SortFunc(bounds, func(a, b time.Time) int { return a.Compare(b) })
	bounds = slices.CompactFunc(bounds, func(a, b time.Time) bool { return a.Equal(b) })

	var instants []time.Time
	for i := 0; i+1 < len(bounds) && len(instants) < maxNoCheckTimeAttempts; i++ {
		mid := bounds[i].Add(bounds[i+1].Sub(bounds[i]) / 2)
		if !mid.Equal(tried) {
			instants = append(instants, mid)
		}
	}
	return instants
}

// checkRevocation looks up every certificate of chain except the anchor in the CRLs issued by
// its issuer. CRLs whose signature does not verify against the issuer are ignored.
func checkRevocation(chain []*x509.Certificate, crls []*x509.RevocationList) error {
	for i := 0; i < len(chain)-1; i++ {
		cert, issuer := chain[i], chain[i+1]
		for _, crl := range crls {
			if crl == nil || !NamesEqual(crl.RawIssuer, issuer.RawSubject) {
				continue
			}
			if err := crl.CheckSignatureFrom(issuer); err != nil {
				continue
			}
			for _, entry := range crl.RevokedCertificateEntries {
				if entry.SerialNumber != nil && entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
					return NewCertificateError(fmt.Sprintf("certificate %q (serial %s) is revoked",
						cert.Subject.String(), cert.SerialNumber.String()))
				}
			}
		}
	}
	return nil
}
