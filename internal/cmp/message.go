package cmp

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Header is the PKIHeader.
//
// Optional fields are absent when nil (or the zero time for MessageTime).
type Header struct {
	PVNO      int64
	Sender    GeneralName
	Recipient GeneralName

	MessageTime   time.Time
	ProtectionAlg *pkix.AlgorithmIdentifier
	SenderKID     []byte
	RecipKID      []byte
	TransactionID []byte
	SenderNonce   []byte
	RecipNonce    []byte
	FreeText      []string
	GeneralInfo   []InfoTypeAndValue
}

// Message is a PKIMessage.
type Message struct {
	Header     Header
	Body       Body
	Protection *asn1.BitString
	ExtraCerts []*x509.Certificate

	// rawHeader and rawBody are the TLVs as received; set by Decode only
	rawHeader []byte
	rawBody   []byte
}

// BodyType returns the type of the message body, or -1 if there is no body.
func (m *Message) BodyType() BodyType {
	if m.Body == nil {
		return -1
	}
	return m.Body.Type()
}

// IsProtected reports whether the message carries a protection value.
func (m *Message) IsProtected() bool {
	return m.Protection != nil
}

// ProtectedPart returns the DER encoding of SEQUENCE { header, body }, the input to protection.
//
// For decoded messages the header and body are taken byte for byte from the input so that
// protection verification does not depend on re-encoding. Messages built in memory are encoded
// with EncodeProtectedPart.
func (m *Message) ProtectedPart() ([]byte, error) {
	if m.rawHeader == nil || m.rawBody == nil {
		return EncodeProtectedPart(&m.Header, m.Body)
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(m.rawHeader)
		b.AddBytes(m.rawBody)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, WrapEncodingError(err, "failed to assemble protected part")
	}
	return der, nil
}

// DropRawEncoding discards the received header and body bytes so that ProtectedPart and
// Marshal use the in-memory fields.
func (m *Message) DropRawEncoding() {
	m.rawHeader = nil
	m.rawBody = nil
}

// TransactionIDString renders the transaction ID for logs and lookup keys. 16 byte IDs are
// shown as UUIDs, other lengths as hex.
func (h *Header) TransactionIDString() string {
	if len(h.TransactionID) == 16 {
		if id, err := uuid.FromBytes(h.TransactionID); err == nil {
			return id.String()
		}
	}
	return hex.EncodeToString(h.TransactionID)
}
