package cmp

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// BodyType is the context-specific tag number that selects a PKIBody variant.
type BodyType int

const (
	BodyIR       BodyType = 0  // initialization request
	BodyIP       BodyType = 1  // initialization response
	BodyCR       BodyType = 2  // certification request
	BodyCP       BodyType = 3  // certification response
	BodyP10CR    BodyType = 4  // PKCS#10 certification request
	BodyPOPDecC  BodyType = 5  // proof-of-possession challenge
	BodyPOPDecR  BodyType = 6  // proof-of-possession response
	BodyKUR      BodyType = 7  // key update request
	BodyKUP      BodyType = 8  // key update response
	BodyKRR      BodyType = 9  // key recovery request
	BodyKRP      BodyType = 10 // key recovery response
	BodyRR       BodyType = 11 // revocation request
	BodyRP       BodyType = 12 // revocation response
	BodyCCR      BodyType = 13 // cross-certification request
	BodyCCP      BodyType = 14 // cross-certification response
	BodyCKUAnn   BodyType = 15 // CA key update announcement
	BodyCAnn     BodyType = 16 // certificate announcement
	BodyRAnn     BodyType = 17 // revocation announcement
	BodyCRLAnn   BodyType = 18 // CRL announcement
	BodyPKIConf  BodyType = 19 // confirmation
	BodyNested   BodyType = 20 // nested message
	BodyGenM     BodyType = 21 // general message
	BodyGenP     BodyType = 22 // general response
	BodyError    BodyType = 23 // error message
	BodyCertConf BodyType = 24 // certificate confirm
	BodyPollReq  BodyType = 25 // polling request
	BodyPollRep  BodyType = 26 // polling response
)

var bodyTypeNames = [...]string{
	"ir", "ip", "cr", "cp", "p10cr", "popdecc", "popdecr", "kur", "kup", "krr", "krp",
	"rr", "rp", "ccr", "ccp", "ckuann", "cann", "rann", "crlann", "pkiconf", "nested",
	"genm", "genp", "error", "certConf", "pollReq", "pollRep",
}

func (t BodyType) String() string {
	if t.Valid() {
		return bodyTypeNames[t]
	}
	return fmt.Sprintf("Unknown(%d)", int(t))
}

// Valid reports whether t is one of the 27 PKIBody variants.
func (t BodyType) Valid() bool {
	return t >= BodyIR && t <= BodyPollRep
}

// Body is the PKIBody union. The concrete types in this package are the only implementations.
type Body interface {
	Type() BodyType
	marshalContent(b *cryptobyte.Builder)
}

// RawBody carries a body variant whose content the trust engine does not interpret
// (CRMF request messages, p10cr, POP challenge/response, krp, rr, rp, rann, nested).
// Content is the DER TLV of the variant content, i.e. without the [n] body tag.
type RawBody struct {
	Kind    BodyType
	Content []byte
}

func (r *RawBody) Type() BodyType { return r.Kind }

func (r *RawBody) marshalContent(b *cryptobyte.Builder) {
	if len(r.Content) == 0 {
		b.SetError(NewEncodingError(fmt.Sprintf("%s body has no content", r.Kind)))
		return
	}
	b.AddBytes(r.Content)
}

// PKIConf is the PKIConfirmContent (ASN.1 NULL) that closes a transaction.
type PKIConf struct{}

func (*PKIConf) Type() BodyType { return BodyPKIConf }

func (*PKIConf) marshalContent(b *cryptobyte.Builder) {
	b.AddASN1NULL()
}

// CertAnn announces a new certificate.
type CertAnn struct {
	Certificate *x509.Certificate
}

func (*CertAnn) Type() BodyType { return BodyCAnn }

func (c *CertAnn) marshalContent(b *cryptobyte.Builder) {
	addCertificate(b, c.Certificate, "cann certificate")
}

// CAKeyUpdAnn announces a CA key update.
type CAKeyUpdAnn struct {
	OldWithNew *x509.Certificate
	NewWithOld *x509.Certificate
	NewWithNew *x509.Certificate
}

func (*CAKeyUpdAnn) Type() BodyType { return BodyCKUAnn }

func (c *CAKeyUpdAnn) marshalContent(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addCertificate(b, c.OldWithNew, "oldWithNew")
		addCertificate(b, c.NewWithOld, "newWithOld")
		addCertificate(b, c.NewWithNew, "newWithNew")
	})
}

// CRLAnn announces one or more CRLs.
type CRLAnn struct {
	CRLs []*x509.RevocationList
}

func (*CRLAnn) Type() BodyType { return BodyCRLAnn }

func (c *CRLAnn) marshalContent(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for i, crl := range c.CRLs {
			if crl == nil || len(crl.Raw) == 0 {
				b.SetError(NewEncodingError(fmt.Sprintf("crlann entry %d has no DER encoding", i)))
				return
			}
			b.AddBytes(crl.Raw)
		}
	})
}

// ErrorMsg is the ErrorMsgContent body.
type ErrorMsg struct {
	Status       PKIStatusInfo
	ErrorCode    *int64
	ErrorDetails []string
}

func (*ErrorMsg) Type() BodyType { return BodyError }

func (e *ErrorMsg) marshalContent(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addStatusInfo(b, e.Status)
		if e.ErrorCode != nil {
			b.AddASN1Int64(*e.ErrorCode)
		}
		if e.ErrorDetails != nil {
			addFreeText(b, e.ErrorDetails)
		}
	})
}

// CertStatus is one entry of a certConf body.
type CertStatus struct {
	CertHash   []byte
	CertReqID  int64
	StatusInfo *PKIStatusInfo
	HashAlg    *pkix.AlgorithmIdentifier
}

// CertConf is the CertConfirmContent body.
type CertConf struct {
	Statuses []CertStatus
}

func (*CertConf) Type() BodyType { return BodyCertConf }

func (c *CertConf) marshalContent(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, st := range c.Statuses {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1OctetString(st.CertHash)
				b.AddASN1Int64(st.CertReqID)
				if st.StatusInfo != nil {
					addStatusInfo(b, *st.StatusInfo)
				}
				if st.HashAlg != nil {
					b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
						addAlgorithmIdentifier(b, *st.HashAlg)
					})
				}
			})
		}
	})
}

// PollReq is the PollReqContent body.
type PollReq struct {
	CertReqIDs []int64
}

func (*PollReq) Type() BodyType { return BodyPollReq }

func (p *PollReq) marshalContent(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, id := range p.CertReqIDs {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1Int64(id)
			})
		}
	})
}

// PollRepEntry is one entry of a pollRep body.
type PollRepEntry struct {
	CertReqID  int64
	CheckAfter int64
	Reason     []string
}

// PollRep is the PollRepContent body.
type PollRep struct {
	Entries []PollRepEntry
}

func (*PollRep) Type() BodyType { return BodyPollRep }

func (p *PollRep) marshalContent(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, e := range p.Entries {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1Int64(e.CertReqID)
				b.AddASN1Int64(e.CheckAfter)
				if e.Reason != nil {
					addFreeText(b, e.Reason)
				}
			})
		}
	})
}

// GenMsg is the general message (genm) and general response (genp) content.
type GenMsg struct {
	Kind  BodyType
	Items []InfoTypeAndValue
}

func (g *GenMsg) Type() BodyType { return g.Kind }

func (g *GenMsg) marshalContent(b *cryptobyte.Builder) {
	if g.Kind != BodyGenM && g.Kind != BodyGenP {
		b.SetError(NewEncodingError(fmt.Sprintf("general message content cannot be used for %s", g.Kind)))
		return
	}
	addInfoTypeAndValues(b, g.Items)
}

func addCertificate(b *cryptobyte.Builder, cert *x509.Certificate, what string) {
	if cert == nil || len(cert.Raw) == 0 {
		b.SetError(NewEncodingError(fmt.Sprintf("%s is missing", what)))
		return
	}
	b.AddBytes(cert.Raw)
}

func addAlgorithmIdentifier(b *cryptobyte.Builder, alg pkix.AlgorithmIdentifier) {
	der, err := asn1.Marshal(alg)
	if err != nil {
		b.SetError(WrapEncodingError(err, "failed to marshal algorithm identifier"))
		return
	}
	b.AddBytes(der)
}

func addFreeText(b *cryptobyte.Builder, text []string) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, s := range text {
			b.AddASN1(cbasn1.UTF8String, func(b *cryptobyte.Builder) {
				b.AddBytes([]byte(s))
			})
		}
	})
}
