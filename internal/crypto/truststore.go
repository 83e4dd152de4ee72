package crypto

import (
	"crypto/x509"
	"time"
)

// VerifyParams are the verification-time settings of a trust store.
type VerifyParams struct {

	// CheckTime pins the time certificates must be valid at. The zero value means now.
	CheckTime time.Time

	// NoCheckTime disables validity period checks. Path building starts at the middle of the
	// target's validity and, when an anchor or intermediate is not valid then, retries at
	// instants where the certificates' validity periods overlap. A chain whose certificates were
	// never valid at the same time is still rejected, as x509 path building always checks time.
	NoCheckTime bool
}

// ReferenceTime returns CheckTime, or the current time when it is unset.
func (p VerifyParams) ReferenceTime() time.Time {
	if p.CheckTime.IsZero() {
		return time.Now()
	}
	return p.CheckTime
}

// ValidAt reports whether cert's validity period covers the reference time.
// It is always true when time checks are disabled.
func (p VerifyParams) ValidAt(cert *x509.Certificate) bool {
	if p.NoCheckTime {
		return true
	}
	t := p.ReferenceTime()
	return !t.Before(cert.NotBefore) && !t.After(cert.NotAfter)
}

// verificationTime is the first time passed to x509 path building for target. With time checks
// disabled the middle of the target's validity period is tried first.
func (p VerifyParams) verificationTime(target *x509.Certificate) time.Time {
	if p.NoCheckTime {
		return target.NotBefore.Add(target.NotAfter.Sub(target.NotBefore) / 2)
	}
	return p.ReferenceTime()
}

// TrustStore holds the trust anchors used for path validation together with their
// verification parameters.
//
// A TrustStore is read concurrently by validations; it must not be modified while in use.
type TrustStore struct {
	certs  []*x509.Certificate
	params VerifyParams
}

// NewTrustStore returns a store holding certs.
func NewTrustStore(certs ...*x509.Certificate) *TrustStore {
	s := &TrustStore{}
	s.Add(certs...)
	return s
}

// Add appends certificates to the store, skipping nil entries and duplicates.
func (s *TrustStore) Add(certs ...*x509.Certificate) {
	for _, cert := range certs {
		if cert == nil || containsCert(s.certs, cert) {
			continue
		}
		s.certs = append(s.certs, cert)
	}
}

// Certificates returns the trust anchors. It is safe to call on a nil store.
func (s *TrustStore) Certificates() []*x509.Certificate {
	if s == nil {
		return nil
	}
	return s.certs
}

// Len returns the number of trust anchors. It is safe to call on a nil store.
func (s *TrustStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.certs)
}

// Params returns the verification parameters. It is safe to call on a nil store.
func (s *TrustStore) Params() VerifyParams {
	if s == nil {
		return VerifyParams{}
	}
	return s.params
}

// SetParams replaces the verification parameters.
func (s *TrustStore) SetParams(p VerifyParams) {
	s.params = p
}

func (s *TrustStore) pool() *x509.CertPool {
	pool := x509.NewCertPool()
	for _, cert := range s.Certificates() {
		pool.AddCert(cert)
	}
	return pool
}

// LoadTrustStore reads the trust anchors in the given PEM files.
func LoadTrustStore(paths []string, params VerifyParams) (*TrustStore, error) {
	store := NewTrustStore()
	store.SetParams(params)
	for _, path := range paths {
		certs, err := ReadCertChainFromPEMFile(path)
		if err != nil {
			return nil, err
		}
		store.Add(certs...)
	}
	return store, nil
}

// IsSelfSigned reports whether cert is issued by itself: its issuer equals its subject and its
// signature verifies with its own key.
func IsSelfSigned(cert *x509.Certificate) bool {
	if cert == nil || !NamesEqual(cert.RawIssuer, cert.RawSubject) {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

func containsCert(certs []*x509.Certificate, cert *x509.Certificate) bool {
	for _, c := range certs {
		if c.Equal(cert) {
			return true
		}
	}
	return false
}
