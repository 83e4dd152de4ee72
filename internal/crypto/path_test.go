package crypto

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/information-sharing-networks/cmp-trust/internal/testutil"
)

func TestValidatePath(t *testing.T) {
	now := time.Now()
	caValidity := testutil.WithValidity(now.Add(-72*time.Hour), now.Add(72*time.Hour))
	root := testutil.NewRootCA(t, "Root CA", caValidity)
	intermediate := testutil.NewIntermediateCA(t, root, "Intermediate CA", caValidity)
	leaf := testutil.NewLeaf(t, intermediate, "server")
	revokedLeaf := testutil.NewLeaf(t, intermediate, "revoked server")
	expiredLeaf := testutil.NewLeaf(t, intermediate, "expired server",
		testutil.WithValidity(now.Add(-48*time.Hour), now.Add(-24*time.Hour)))
	selfSigned := testutil.NewSelfSignedLeaf(t, "standalone")
	otherRoot := testutil.NewRootCA(t, "Other Root CA")

	// the root expired before the middle of the leaf's validity
	shortRoot := testutil.NewRootCA(t, "Short-lived Root CA",
		testutil.WithValidity(now.Add(-4*365*24*time.Hour), now.Add(-365*24*time.Hour)))
	longLeaf := testutil.NewLeaf(t, shortRoot, "long-lived server",
		testutil.WithValidity(now.Add(-2*365*24*time.Hour), now.Add(2*365*24*time.Hour)))
	lateIntermediate := testutil.NewIntermediateCA(t, shortRoot, "Late Intermediate CA",
		testutil.WithValidity(now.Add(-180*24*time.Hour), now.Add(365*24*time.Hour)))
	lateLeaf := testutil.NewLeaf(t, lateIntermediate, "late server",
		testutil.WithValidity(now.Add(-2*365*24*time.Hour), now.Add(2*365*24*time.Hour)))
	noCheckTime := func(certs ...*x509.Certificate) *TrustStore {
		s := NewTrustStore(certs...)
		s.SetParams(VerifyParams{NoCheckTime: true})
		return s
	}

	crl := testutil.NewCRL(t, intermediate, revokedLeaf.Cert)
	forgedCRL := testutil.NewCRL(t, otherRoot, leaf.Cert)

	testCases := []struct {
		name      string
		target    *x509.Certificate
		trusted   *TrustStore
		untrusted []*x509.Certificate
		crls      []*x509.RevocationList
		want      bool
	}{
		{
			name:      "chain through untrusted intermediate",
			target:    leaf.Cert,
			trusted:   NewTrustStore(root.Cert),
			untrusted: []*x509.Certificate{intermediate.Cert},
			want:      true,
		},
		{
			name:    "missing intermediate",
			target:  leaf.Cert,
			trusted: NewTrustStore(root.Cert),
			want:    false,
		},
		{
			name:      "untrusted root",
			target:    leaf.Cert,
			trusted:   NewTrustStore(otherRoot.Cert),
			untrusted: []*x509.Certificate{intermediate.Cert, root.Cert},
			want:      false,
		},
		{
			name:    "self-signed target in the trust store",
			target:  selfSigned.Cert,
			trusted: NewTrustStore(selfSigned.Cert),
			want:    true,
		},
		{
			name:      "expired target",
			target:    expiredLeaf.Cert,
			trusted:   NewTrustStore(root.Cert),
			untrusted: []*x509.Certificate{intermediate.Cert},
			want:      false,
		},
		{
			name:   "expired target with time checks disabled",
			target: expiredLeaf.Cert,
			trusted: func() *TrustStore {
				s := NewTrustStore(root.Cert)
				s.SetParams(VerifyParams{NoCheckTime: true})
				return s
			}(),
			untrusted: []*x509.Certificate{intermediate.Cert},
			want:      true,
		},
		{
			name:    "anchor expired before the target's midpoint with time checks disabled",
			target:  longLeaf.Cert,
			trusted: noCheckTime(shortRoot.Cert),
			want:    true,
		},
		{
			name:    "anchor expired before the target's midpoint",
			target:  longLeaf.Cert,
			trusted: NewTrustStore(shortRoot.Cert),
			want:    false,
		},
		{
			name:      "anchor and intermediate never valid together with time checks disabled",
			target:    lateLeaf.Cert,
			trusted:   noCheckTime(shortRoot.Cert),
			untrusted: []*x509.Certificate{lateIntermediate.Cert},
			want:      false,
		},
		{
			name:      "revoked target",
			target:    revokedLeaf.Cert,
			trusted:   NewTrustStore(root.Cert),
			untrusted: []*x509.Certificate{intermediate.Cert},
			crls:      []*x509.RevocationList{crl},
			want:      false,
		},
		{
			name:      "CRL not listing the target",
			target:    leaf.Cert,
			trusted:   NewTrustStore(root.Cert),
			untrusted: []*x509.Certificate{intermediate.Cert},
			crls:      []*x509.RevocationList{crl},
			want:      true,
		},
		{
			name:      "CRL from another issuer is ignored",
			target:    leaf.Cert,
			trusted:   NewTrustStore(root.Cert),
			untrusted: []*x509.Certificate{intermediate.Cert},
			crls:      []*x509.RevocationList{forgedCRL},
			want:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidatePath(tc.target, PathOptions{
				Trusted:   tc.trusted,
				Untrusted: tc.untrusted,
				CRLs:      tc.crls,
			})
			if err != nil {
				t.Fatalf("ValidatePath returned an error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ValidatePath = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidatePath_NoTrustedCertificates(t *testing.T) {
	root := testutil.NewRootCA(t, "Root CA")

	for name, store := range map[string]*TrustStore{"nil store": nil, "empty store": NewTrustStore()} {
		t.Run(name, func(t *testing.T) {
			ok, err := ValidatePath(root.Cert, PathOptions{Trusted: store})
			if ok {
				t.Error("expected path validation to fail")
			}
			if CodeOf(err) != ErrCodeNoTrustedCertificates {
				t.Errorf("expected %s, got %v", ErrCodeNoTrustedCertificates, err)
			}
		})
	}
}

func TestValidatePath_AcceptPolicy(t *testing.T) {
	root := testutil.NewRootCA(t, "Root CA")
	leaf := testutil.NewLeaf(t, root, "server")
	stranger := testutil.NewSelfSignedLeaf(t, "stranger")

	t.Run("policy rejects a valid path", func(t *testing.T) {
		var seen PathResult
		ok, err := ValidatePath(leaf.Cert, PathOptions{
			Trusted: NewTrustStore(root.Cert),
			AcceptPolicy: func(target *x509.Certificate, result PathResult) bool {
				seen = result
				return false
			},
		})
		if err != nil || ok {
			t.Fatalf("expected policy rejection, got %v, %v", ok, err)
		}
		if !seen.Valid || len(seen.Chains) == 0 || len(seen.Chains[0]) != 2 {
			t.Errorf("policy did not receive the built path: %+v", seen)
		}
	})

	t.Run("policy accepts an invalid path", func(t *testing.T) {
		var seen PathResult
		ok, err := ValidatePath(stranger.Cert, PathOptions{
			Trusted: NewTrustStore(root.Cert),
			AcceptPolicy: func(target *x509.Certificate, result PathResult) bool {
				seen = result
				return target.Equal(stranger.Cert)
			},
		})
		if err != nil || !ok {
			t.Fatalf("expected policy acceptance, got %v, %v", ok, err)
		}
		if seen.Valid || seen.Err == nil {
			t.Errorf("policy should see the validator failure: %+v", seen)
		}
	})
}
