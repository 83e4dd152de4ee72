package crypto

import (
	"bytes"
	"crypto/x509"
	"fmt"
)

// DefaultMaxCandidates bounds a candidate set when the caller does not set a limit.
const DefaultMaxCandidates = 64

// FindByIdentity returns the certificates in pool that may have signed a message from the
// given sender.
//
// A certificate qualifies when its subject equals subject (a DER encoded Name) and its validity
// period covers the reference time of params (unless time checks are disabled). When keyID is
// set and at least one qualifying certificate has that subject key identifier, certificates with
// any other key identifier are dropped. The result keeps pool order and has no duplicates.
//
// No match is not an error. An error with ErrCodeResourceLimit is returned, and no candidates,
// when more than limit certificates qualify; limit <= 0 selects DefaultMaxCandidates.
func FindByIdentity(pool []*x509.Certificate, subject, keyID []byte, params VerifyParams, limit int) ([]*x509.Certificate, error) {
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}

	var (
		candidates []*x509.Certificate
		kidMatch   bool
	)
	for _, cert := range pool {
		if cert == nil || !NamesEqual(cert.RawSubject, subject) || !params.ValidAt(cert) {
			continue
		}
		if containsCert(candidates, cert) {
			continue
		}
		if len(candidates) == limit {
			return nil, NewResourceLimitError(fmt.Sprintf("more than %d candidate certificates for %s", limit, describeName(subject)))
		}
		candidates = append(candidates, cert)
		if len(keyID) > 0 && bytes.Equal(cert.SubjectKeyId, keyID) {
			kidMatch = true
		}
	}

	if !kidMatch {
		return candidates, nil
	}
	matched := candidates[:0:0]
	for _, cert := range candidates {
		if bytes.Equal(cert.SubjectKeyId, keyID) {
			matched = append(matched, cert)
		}
	}
	return matched, nil
}

func describeName(der []byte) string {
	name, err := parseName(der)
	if err != nil {
		return "<invalid name>"
	}
	return name
}
