// Package testutil builds throwaway PKI material (CAs, leaf certificates, CRLs) for tests.
package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Identity is a certificate together with its private key.
type Identity struct {
	Cert *x509.Certificate
	Key  crypto.Signer
}

type certOptions struct {
	key          crypto.Signer
	notBefore    time.Time
	notAfter     time.Time
	keyUsage     *x509.KeyUsage
	subjectKeyID []byte
	serial       *big.Int
	subject      *pkix.Name
}

// CertOption customises a generated certificate.
type CertOption func(*certOptions)

// WithKey uses key instead of a fresh P-256 key.
func WithKey(key crypto.Signer) CertOption {
	return func(o *certOptions) { o.key = key }
}

// WithValidity sets the validity period.
func WithValidity(notBefore, notAfter time.Time) CertOption {
	return func(o *certOptions) {
		o.notBefore = notBefore
		o.notAfter = notAfter
	}
}

// WithKeyUsage overrides the key usage. Zero omits the extension.
func WithKeyUsage(ku x509.KeyUsage) CertOption {
	return func(o *certOptions) { o.keyUsage = &ku }
}

// WithSubjectKeyID sets the subject key identifier.
func WithSubjectKeyID(id []byte) CertOption {
	return func(o *certOptions) { o.subjectKeyID = id }
}

// WithSerial sets the serial number.
func WithSerial(serial int64) CertOption {
	return func(o *certOptions) { o.serial = big.NewInt(serial) }
}

// WithSubject replaces the default CN-only subject.
func WithSubject(name pkix.Name) CertOption {
	return func(o *certOptions) { o.subject = &name }
}

// NewRootCA creates a self-signed CA certificate.
func NewRootCA(t testing.TB, cn string, opts ...CertOption) *Identity {
	t.Helper()
	return issue(t, nil, cn, true, x509.KeyUsageCertSign|x509.KeyUsageCRLSign|x509.KeyUsageDigitalSignature, opts)
}

// NewIntermediateCA creates a CA certificate issued by parent.
func NewIntermediateCA(t testing.TB, parent *Identity, cn string, opts ...CertOption) *Identity {
	t.Helper()
	return issue(t, parent, cn, true, x509.KeyUsageCertSign|x509.KeyUsageCRLSign|x509.KeyUsageDigitalSignature, opts)
}

// NewLeaf creates an end-entity certificate issued by issuer.
func NewLeaf(t testing.TB, issuer *Identity, cn string, opts ...CertOption) *Identity {
	t.Helper()
	return issue(t, issuer, cn, false, x509.KeyUsageDigitalSignature, opts)
}

// NewSelfSignedLeaf creates a self-signed end-entity certificate.
func NewSelfSignedLeaf(t testing.TB, cn string, opts ...CertOption) *Identity {
	t.Helper()
	return issue(t, nil, cn, false, x509.KeyUsageDigitalSignature, opts)
}

// NewP256Key returns a fresh ECDSA P-256 key.
func NewP256Key(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func issue(t testing.TB, issuer *Identity, cn string, isCA bool, ku x509.KeyUsage, opts []CertOption) *Identity {
	t.Helper()

	now := time.Now()
	o := certOptions{
		notBefore: now.Add(-1 * time.Hour),
		notAfter:  now.Add(24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.key == nil {
		o.key = NewP256Key(t)
	}
	if o.keyUsage != nil {
		ku = *o.keyUsage
	}
	if o.serial == nil {
		serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
		if err != nil {
			t.Fatalf("failed to generate serial number: %v", err)
		}
		o.serial = serial
	}
	if o.subjectKeyID == nil {
		o.subjectKeyID = keyID(t, o.key.Public())
	}

	subject := pkix.Name{CommonName: cn}
	if o.subject != nil {
		subject = *o.subject
	}

	template := &x509.Certificate{
		SerialNumber:          o.serial,
		Subject:               subject,
		NotBefore:             o.notBefore,
		NotAfter:              o.notAfter,
		KeyUsage:              ku,
		BasicConstraintsValid: true,
		IsCA:                  isCA,
		SubjectKeyId:          o.subjectKeyID,
	}

	parent := template
	signer := o.key
	if issuer != nil {
		parent = issuer.Cert
		signer = issuer.Key
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, o.key.Public(), signer)
	if err != nil {
		t.Fatalf("failed to create certificate %q: %v", cn, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate %q: %v", cn, err)
	}
	return &Identity{Cert: cert, Key: o.key}
}

func keyID(t testing.TB, pub crypto.PublicKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	sum := sha1.Sum(der)
	return sum[:]
}

// NewCRL creates a CRL signed by issuer that revokes the given certificates.
func NewCRL(t testing.TB, issuer *Identity, revoked ...*x509.Certificate) *x509.RevocationList {
	t.Helper()

	now := time.Now()
	template := &x509.RevocationList{
		Number:     big.NewInt(now.UnixNano()),
		ThisUpdate: now.Add(-1 * time.Hour),
		NextUpdate: now.Add(24 * time.Hour),
	}
	for _, cert := range revoked {
		template.RevokedCertificateEntries = append(template.RevokedCertificateEntries, x509.RevocationListEntry{
			SerialNumber:   cert.SerialNumber,
			RevocationTime: now.Add(-1 * time.Minute),
		})
	}

	der, err := x509.CreateRevocationList(rand.Reader, template, issuer.Cert, issuer.Key)
	if err != nil {
		t.Fatalf("failed to create CRL: %v", err)
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		t.Fatalf("failed to parse CRL: %v", err)
	}
	return crl
}

// WritePEM writes the certificates to a PEM file in a temporary directory and returns its path.
func WritePEM(t testing.TB, name string, certs ...*x509.Certificate) string {
	t.Helper()
	var data []byte
	for _, cert := range certs {
		data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	}
	return writeFile(t, name, data)
}

// WriteCRLPEM writes the CRLs to a PEM file in a temporary directory and returns its path.
func WriteCRLPEM(t testing.TB, name string, crls ...*x509.RevocationList) string {
	t.Helper()
	var data []byte
	for _, crl := range crls {
		data = append(data, pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: crl.Raw})...)
	}
	return writeFile(t, name, data)
}

func writeFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
