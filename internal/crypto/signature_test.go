package crypto

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"log/slog"
	"strings"
	"testing"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/information-sharing-networks/cmp-trust/internal/testutil"
)

func pssAlgorithm(t *testing.T, hashOID asn1.ObjectIdentifier, saltLength int) pkix.AlgorithmIdentifier {
	t.Helper()
	hashAlg := pkix.AlgorithmIdentifier{Algorithm: hashOID, Parameters: asn1.NullRawValue}
	mgfParams, err := asn1.Marshal(hashAlg)
	if err != nil {
		t.Fatalf("failed to marshal MGF1 parameters: %v", err)
	}
	params, err := asn1.Marshal(pssParameters{
		Hash:         hashAlg,
		MGF:          pkix.AlgorithmIdentifier{Algorithm: OIDMGF1, Parameters: asn1.RawValue{FullBytes: mgfParams}},
		SaltLength:   saltLength,
		TrailerField: 1,
	})
	if err != nil {
		t.Fatalf("failed to marshal PSS parameters: %v", err)
	}
	return pkix.AlgorithmIdentifier{Algorithm: OIDSignatureRSAPSS, Parameters: asn1.RawValue{FullBytes: params}}
}

func TestVerifySignature(t *testing.T) {
	ca := testutil.NewRootCA(t, "Signature Test CA")
	data := []byte("protected part")

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate Ed25519 key: %v", err)
	}

	ecLeaf := testutil.NewLeaf(t, ca, "ec.example.com")
	rsaLeaf := testutil.NewLeaf(t, ca, "rsa.example.com", testutil.WithKey(rsaKey))
	edLeaf := testutil.NewLeaf(t, ca, "ed.example.com", testutil.WithKey(edKey))

	testCases := []struct {
		name     string
		identity *testutil.Identity
		alg      pkix.AlgorithmIdentifier
	}{
		{"ecdsa sha256", ecLeaf, pkix.AlgorithmIdentifier{Algorithm: OIDSignatureECDSAWithSHA256}},
		{"ecdsa sha384", ecLeaf, pkix.AlgorithmIdentifier{Algorithm: OIDSignatureECDSAWithSHA384}},
		{"ecdsa sha1", ecLeaf, pkix.AlgorithmIdentifier{Algorithm: OIDSignatureECDSAWithSHA1}},
		{"ecdsa sha3-256", ecLeaf, pkix.AlgorithmIdentifier{Algorithm: OIDSignatureECDSAWithSHA3_256}},
		{"ecdsa sha3-512", ecLeaf, pkix.AlgorithmIdentifier{Algorithm: OIDSignatureECDSAWithSHA3_512}},
		{"rsa sha256", rsaLeaf, pkix.AlgorithmIdentifier{Algorithm: OIDSignatureSHA256WithRSA, Parameters: asn1.NullRawValue}},
		{"rsa sha512", rsaLeaf, pkix.AlgorithmIdentifier{Algorithm: OIDSignatureSHA512WithRSA}},
		{"rsa-pss sha256", rsaLeaf, pssAlgorithm(t, OIDSHA256, 32)},
		{"rsa-pss default parameters", rsaLeaf, pkix.AlgorithmIdentifier{Algorithm: OIDSignatureRSAPSS}},
		{"ed25519", edLeaf, pkix.AlgorithmIdentifier{Algorithm: OIDSignatureEd25519}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyProtection(tc.alg); got != ProtectionSignature {
				t.Errorf("ClassifyProtection = %s, want signature", got)
			}

			sig, err := Sign(tc.identity.Key, tc.alg, data)
			if err != nil {
				t.Fatalf("Sign failed: %v", err)
			}
			if err := VerifySignature(tc.identity.Cert, tc.alg, data, sig, SignatureOptions{}); err != nil {
				t.Fatalf("VerifySignature rejected a valid signature: %v", err)
			}

			tampered := append([]byte{}, data...)
			tampered[0] ^= 0x01
			if err := VerifySignature(tc.identity.Cert, tc.alg, tampered, sig, SignatureOptions{}); CodeOf(err) != ErrCodeInvalidSignature {
				t.Errorf("expected signature mismatch for tampered data, got %v", err)
			}

			if err := VerifySignature(ca.Cert, tc.alg, data, sig, SignatureOptions{}); CodeOf(err) != ErrCodeInvalidSignature {
				t.Errorf("expected signature mismatch for the wrong certificate, got %v", err)
			}
		})
	}
}

func TestVerifySignature_Ed448(t *testing.T) {
	pub, priv, err := ed448.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate Ed448 key: %v", err)
	}

	// crypto/x509 cannot create Ed448 certificates; only the public key info is needed here
	spki, err := asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{Algorithm: OIDSignatureEd448},
		PublicKey: asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	if err != nil {
		t.Fatalf("failed to marshal public key info: %v", err)
	}
	cert := &x509.Certificate{RawSubjectPublicKeyInfo: spki}

	alg := pkix.AlgorithmIdentifier{Algorithm: OIDSignatureEd448}
	data := []byte("protected part")

	sig, err := Sign(priv, alg, data)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if err := VerifySignature(cert, alg, data, sig, SignatureOptions{}); err != nil {
		t.Fatalf("VerifySignature rejected a valid Ed448 signature: %v", err)
	}
	if err := VerifySignature(cert, alg, []byte("other"), sig, SignatureOptions{}); CodeOf(err) != ErrCodeInvalidSignature {
		t.Errorf("expected signature mismatch, got %v", err)
	}

	ca := testutil.NewRootCA(t, "Not Ed448")
	if err := VerifySignature(ca.Cert, alg, data, sig, SignatureOptions{}); CodeOf(err) != ErrCodeInvalidSignature {
		t.Errorf("expected signature mismatch for a non Ed448 key, got %v", err)
	}
}

func TestVerifySignature_KeyUsage(t *testing.T) {
	ca := testutil.NewRootCA(t, "Key Usage CA")
	alg := pkix.AlgorithmIdentifier{Algorithm: OIDSignatureECDSAWithSHA256}
	data := []byte("protected part")

	testCases := []struct {
		name       string
		keyUsage   x509.KeyUsage
		allowCert  bool
		wantCode   ErrorCode
		wantWarned bool
	}{
		{name: "no key usage extension", keyUsage: 0},
		{name: "digitalSignature", keyUsage: x509.KeyUsageDigitalSignature},
		{name: "keyEncipherment only", keyUsage: x509.KeyUsageKeyEncipherment, wantCode: ErrCodeKeyUsage},
		{name: "keyCertSign without relaxation", keyUsage: x509.KeyUsageCertSign, wantCode: ErrCodeKeyUsage},
		{name: "keyCertSign with relaxation", keyUsage: x509.KeyUsageCertSign, allowCert: true, wantWarned: true},
		{name: "keyEncipherment with relaxation", keyUsage: x509.KeyUsageKeyEncipherment, allowCert: true, wantCode: ErrCodeKeyUsage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaf := testutil.NewLeaf(t, ca, "signer", testutil.WithKeyUsage(tc.keyUsage))
			sig, err := Sign(leaf.Key, alg, data)
			if err != nil {
				t.Fatalf("Sign failed: %v", err)
			}

			var logs bytes.Buffer
			opts := SignatureOptions{
				AllowCertSignKeyUsage: tc.allowCert,
				Logger:                slog.New(slog.NewTextHandler(&logs, nil)),
			}
			err = VerifySignature(leaf.Cert, alg, data, sig, opts)
			if got := CodeOf(err); got != tc.wantCode {
				t.Fatalf("expected code %q, got %q (%v)", tc.wantCode, got, err)
			}
			warned := strings.Contains(logs.String(), "level=WARN")
			if warned != tc.wantWarned {
				t.Errorf("warning logged = %v, want %v (%s)", warned, tc.wantWarned, logs.String())
			}
		})
	}
}

func TestVerifySignature_UnsupportedAlgorithm(t *testing.T) {
	ca := testutil.NewRootCA(t, "CA")

	testCases := []struct {
		name string
		alg  pkix.AlgorithmIdentifier
	}{
		{"unknown oid", pkix.AlgorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 2, 3, 4}}},
		{"md5 with rsa", pkix.AlgorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 4}}},
		{"pss with unknown hash", pssAlgorithm(t, asn1.ObjectIdentifier{1, 2, 3}, 20)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(ca.Cert, tc.alg, []byte("data"), []byte("sig"), SignatureOptions{})
			if got := CodeOf(err); got != ErrCodeUnsupportedAlgorithm {
				t.Errorf("expected %s, got %s (%v)", ErrCodeUnsupportedAlgorithm, got, err)
			}
			if ClassifyProtection(tc.alg) == ProtectionSignature && tc.name == "unknown oid" {
				t.Errorf("unknown oid classified as signature")
			}
		})
	}
}

func TestClassifyProtection(t *testing.T) {
	testCases := []struct {
		oid  asn1.ObjectIdentifier
		want ProtectionKind
	}{
		{OIDPasswordBasedMAC, ProtectionMAC},
		{OIDPBMAC1, ProtectionMAC},
		{OIDDHBasedMAC, ProtectionMAC},
		{OIDSignatureEd25519, ProtectionSignature},
		{OIDSignatureRSAPSS, ProtectionSignature},
		{asn1.ObjectIdentifier{1, 2, 3}, ProtectionUnknown},
	}
	for _, tc := range testCases {
		t.Run(tc.oid.String(), func(t *testing.T) {
			if got := ClassifyProtection(pkix.AlgorithmIdentifier{Algorithm: tc.oid}); got != tc.want {
				t.Errorf("ClassifyProtection(%s) = %s, want %s", tc.oid, got, tc.want)
			}
		})
	}
}

func TestLookupSignatureAlgorithm_PSSDigest(t *testing.T) {
	alg, err := LookupSignatureAlgorithm(pssAlgorithm(t, OIDSHA384, 48))
	if err != nil {
		t.Fatalf("LookupSignatureAlgorithm failed: %v", err)
	}
	if alg.Digest.Hash != crypto.SHA384 {
		t.Errorf("expected SHA-384, got %v", alg.Digest.Hash)
	}
}
