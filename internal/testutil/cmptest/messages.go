// Package cmptest builds protected CMP messages for tests.
//
// Messages are marshalled and decoded again before they are returned, so protection is
// verified over the received encoding just as it is for messages read off the wire.
package cmptest

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"
	"time"

	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/crypto"
	"github.com/information-sharing-networks/cmp-trust/internal/testutil"
)

// Option modifies a message before its protection is computed.
type Option func(*cmp.Message)

// WithSenderName sets the sender to the DER encoded Name der.
func WithSenderName(der []byte) Option {
	return func(m *cmp.Message) { m.Header.Sender = cmp.NewRawDirectoryName(der) }
}

// WithSenderKID sets the senderKID header field; nil removes it.
func WithSenderKID(kid []byte) Option {
	return func(m *cmp.Message) { m.Header.SenderKID = kid }
}

// WithExtraCerts sets the extraCerts of the message.
func WithExtraCerts(certs ...*x509.Certificate) Option {
	return func(m *cmp.Message) { m.ExtraCerts = certs }
}

// WithTransactionID sets the transactionID header field.
func WithTransactionID(id []byte) Option {
	return func(m *cmp.Message) { m.Header.TransactionID = id }
}

// WithProtectionAlg overrides the protection algorithm chosen by the builder.
func WithProtectionAlg(alg pkix.AlgorithmIdentifier) Option {
	return func(m *cmp.Message) { m.Header.ProtectionAlg = &alg }
}

// DefaultTransactionID is the transactionID of messages built without WithTransactionID.
var DefaultTransactionID = bytes.Repeat([]byte{0x5a}, 16)

func newMessage(body cmp.Body) *cmp.Message {
	return &cmp.Message{
		Header: cmp.Header{
			PVNO:          cmp.PVNOCMP2000,
			Sender:        cmp.NullDirectoryName(),
			Recipient:     cmp.NullDirectoryName(),
			MessageTime:   time.Now().UTC().Truncate(time.Second),
			TransactionID: DefaultTransactionID,
			SenderNonce:   bytes.Repeat([]byte{0x01}, 16),
		},
		Body: body,
	}
}

// Signed returns body wrapped in a message signed by signer. The sender and senderKID are taken
// from signer's certificate unless overridden by opts.
func Signed(t testing.TB, signer *testutil.Identity, body cmp.Body, opts ...Option) *cmp.Message {
	t.Helper()

	msg := newMessage(body)
	msg.Header.Sender = cmp.NewRawDirectoryName(signer.Cert.RawSubject)
	msg.Header.SenderKID = signer.Cert.SubjectKeyId
	alg := SignatureAlgorithmFor(t, signer)
	msg.Header.ProtectionAlg = &alg
	for _, opt := range opts {
		opt(msg)
	}

	data, err := cmp.EncodeProtectedPart(&msg.Header, msg.Body)
	if err != nil {
		t.Fatalf("failed to encode protected part: %v", err)
	}
	sig, err := crypto.Sign(signer.Key, *msg.Header.ProtectionAlg, data)
	if err != nil {
		t.Fatalf("failed to sign message: %v", err)
	}
	msg.Protection = &asn1.BitString{Bytes: sig, BitLength: 8 * len(sig)}
	return Reencode(t, msg)
}

// MACProtected returns body wrapped in a message protected with PasswordBasedMac over secret.
func MACProtected(t testing.TB, secret []byte, body cmp.Body, opts ...Option) *cmp.Message {
	t.Helper()

	alg, err := crypto.NewPasswordBasedMACAlgorithm([]byte("cmptest-salt"), crypto.OIDSHA256, crypto.OIDHMACWithSHA256, 1000)
	if err != nil {
		t.Fatalf("failed to create MAC algorithm: %v", err)
	}
	msg := newMessage(body)
	msg.Header.ProtectionAlg = &alg
	msg.Header.SenderKID = []byte("client-reference")
	for _, opt := range opts {
		opt(msg)
	}

	data, err := cmp.EncodeProtectedPart(&msg.Header, msg.Body)
	if err != nil {
		t.Fatalf("failed to encode protected part: %v", err)
	}
	mac, err := crypto.ComputeMAC(*msg.Header.ProtectionAlg, secret, data)
	if err != nil {
		t.Fatalf("failed to compute MAC: %v", err)
	}
	msg.Protection = &asn1.BitString{Bytes: mac, BitLength: 8 * len(mac)}
	return Reencode(t, msg)
}

// Unprotected returns body wrapped in a message without protection.
func Unprotected(t testing.TB, body cmp.Body, opts ...Option) *cmp.Message {
	t.Helper()
	msg := newMessage(body)
	for _, opt := range opts {
		opt(msg)
	}
	return Reencode(t, msg)
}

// Reencode marshals msg and decodes the result.
func Reencode(t testing.TB, msg *cmp.Message) *cmp.Message {
	t.Helper()
	der, err := cmp.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal message: %v", err)
	}
	decoded, err := cmp.Decode(der)
	if err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return decoded
}

// Marshal returns the DER encoding of msg.
func Marshal(t testing.TB, msg *cmp.Message) []byte {
	t.Helper()
	der, err := cmp.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal message: %v", err)
	}
	return der
}

// SignatureAlgorithmFor returns a signature algorithm matching the key of id.
func SignatureAlgorithmFor(t testing.TB, id *testutil.Identity) pkix.AlgorithmIdentifier {
	t.Helper()
	switch id.Key.Public().(type) {
	case *ecdsa.PublicKey:
		return pkix.AlgorithmIdentifier{Algorithm: crypto.OIDSignatureECDSAWithSHA256}
	case *rsa.PublicKey:
		return pkix.AlgorithmIdentifier{Algorithm: crypto.OIDSignatureSHA256WithRSA, Parameters: asn1.NullRawValue}
	case ed25519.PublicKey:
		return pkix.AlgorithmIdentifier{Algorithm: crypto.OIDSignatureEd25519}
	}
	t.Fatalf("unsupported key type %T", id.Key.Public())
	return pkix.AlgorithmIdentifier{}
}

// IP returns an initialization response body issuing cert.
func IP(issued *x509.Certificate) *cmp.CertRepMessage {
	return CertRep(cmp.BodyIP, issued)
}

// CertRep returns a certificate response body of the given kind issuing cert.
func CertRep(kind cmp.BodyType, issued *x509.Certificate) *cmp.CertRepMessage {
	rep := &cmp.CertRepMessage{
		Kind: kind,
		Responses: []cmp.CertResponse{{
			CertReqID: 0,
			Status:    cmp.PKIStatusInfo{Status: cmp.StatusAccepted},
		}},
	}
	if issued != nil {
		rep.Responses[0].CertifiedKeyPair = &cmp.CertifiedKeyPair{Certificate: issued}
	}
	return rep
}

// PKIConf returns a pkiconf body.
func PKIConf() *cmp.PKIConf {
	return &cmp.PKIConf{}
}
