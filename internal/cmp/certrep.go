package cmp

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// PKIStatus values (RFC 4210 section 5.2.3)
type PKIStatus int

const (
	StatusAccepted               PKIStatus = 0
	StatusGrantedWithMods        PKIStatus = 1
	StatusRejection              PKIStatus = 2
	StatusWaiting                PKIStatus = 3
	StatusRevocationWarning      PKIStatus = 4
	StatusRevocationNotification PKIStatus = 5
	StatusKeyUpdateWarning       PKIStatus = 6
)

// PKIStatusInfo reports the outcome of a request.
type PKIStatusInfo struct {
	Status       PKIStatus
	StatusString []string
	FailInfo     *asn1.BitString
}

// CertRepMessage is the content of the ip, cp, kup and ccp bodies.
type CertRepMessage struct {
	Kind      BodyType
	CAPubs    []*x509.Certificate
	Responses []CertResponse
}

// CertResponse is a single response within a CertRepMessage.
type CertResponse struct {
	CertReqID        int64
	Status           PKIStatusInfo
	CertifiedKeyPair *CertifiedKeyPair
	RspInfo          []byte
}

// CertifiedKeyPair carries the issued certificate.
//
// Exactly one of Certificate and EncryptedCert is set. EncryptedCert, PrivateKey and
// PublicationInfo are kept as DER and not interpreted.
type CertifiedKeyPair struct {
	Certificate     *x509.Certificate
	EncryptedCert   []byte
	PrivateKey      []byte
	PublicationInfo []byte
}

func (c *CertRepMessage) Type() BodyType { return c.Kind }

// IsCertRepKind reports whether t is one of the body variants carrying a CertRepMessage.
func IsCertRepKind(t BodyType) bool {
	switch t {
	case BodyIP, BodyCP, BodyKUP, BodyCCP:
		return true
	}
	return false
}

// IssuedCertificate returns the plain (not encrypted) certificate of the first CertResponse, if any.
func (c *CertRepMessage) IssuedCertificate() *x509.Certificate {
	if len(c.Responses) == 0 || c.Responses[0].CertifiedKeyPair == nil {
		return nil
	}
	return c.Responses[0].CertifiedKeyPair.Certificate
}

func (c *CertRepMessage) marshalContent(b *cryptobyte.Builder) {
	if !IsCertRepKind(c.Kind) {
		b.SetError(NewEncodingError(fmt.Sprintf("certificate response content cannot be used for %s", c.Kind)))
		return
	}
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		if len(c.CAPubs) > 0 {
			b.AddASN1(cbasn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					for i, cert := range c.CAPubs {
						addCertificate(b, cert, fmt.Sprintf("caPubs[%d]", i))
					}
				})
			})
		}
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			for _, rsp := range c.Responses {
				addCertResponse(b, rsp)
			}
		})
	})
}

func addCertResponse(b *cryptobyte.Builder, rsp CertResponse) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(rsp.CertReqID)
		addStatusInfo(b, rsp.Status)
		if kp := rsp.CertifiedKeyPair; kp != nil {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				switch {
				case kp.Certificate != nil && kp.EncryptedCert != nil:
					b.SetError(NewEncodingError("certifiedKeyPair has both a certificate and an encrypted certificate"))
				case kp.Certificate != nil:
					b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
						addCertificate(b, kp.Certificate, "certifiedKeyPair certificate")
					})
				case kp.EncryptedCert != nil:
					b.AddASN1(cbasn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
						b.AddBytes(kp.EncryptedCert)
					})
				default:
					b.SetError(NewEncodingError("certifiedKeyPair has neither a certificate nor an encrypted certificate"))
				}
				if kp.PrivateKey != nil {
					b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
						b.AddBytes(kp.PrivateKey)
					})
				}
				if kp.PublicationInfo != nil {
					b.AddASN1(cbasn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
						b.AddBytes(kp.PublicationInfo)
					})
				}
			})
		}
		if rsp.RspInfo != nil {
			b.AddASN1OctetString(rsp.RspInfo)
		}
	})
}

func addStatusInfo(b *cryptobyte.Builder, si PKIStatusInfo) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(int64(si.Status))
		if si.StatusString != nil {
			addFreeText(b, si.StatusString)
		}
		if si.FailInfo != nil {
			der, err := asn1.Marshal(*si.FailInfo)
			if err != nil {
				b.SetError(WrapEncodingError(err, "failed to marshal failInfo"))
				return
			}
			b.AddBytes(der)
		}
	})
}

func parseStatusInfo(s *cryptobyte.String) (PKIStatusInfo, error) {
	var (
		si     PKIStatusInfo
		seq    cryptobyte.String
		status int64
	)
	if !s.ReadASN1(&seq, cbasn1.SEQUENCE) || !seq.ReadASN1Integer(&status) {
		return si, NewDecodingError("malformed PKIStatusInfo")
	}
	si.Status = PKIStatus(status)
	if seq.PeekASN1Tag(cbasn1.SEQUENCE) {
		text, err := parseFreeText(&seq)
		if err != nil {
			return si, err
		}
		si.StatusString = text
	}
	if seq.PeekASN1Tag(cbasn1.BIT_STRING) {
		var bits asn1.BitString
		if !seq.ReadASN1BitString(&bits) {
			return si, NewDecodingError("malformed PKIFailureInfo")
		}
		si.FailInfo = &bits
	}
	if !seq.Empty() {
		return si, NewDecodingError("trailing data in PKIStatusInfo")
	}
	return si, nil
}

func parseCertRepMessage(kind BodyType, content cryptobyte.String) (*CertRepMessage, error) {
	msg := &CertRepMessage{Kind: kind}

	var seq cryptobyte.String
	if !content.ReadASN1(&seq, cbasn1.SEQUENCE) || !content.Empty() {
		return nil, NewDecodingError(fmt.Sprintf("malformed %s content", kind))
	}

	var (
		caPubs    cryptobyte.String
		hasCAPubs bool
	)
	if !seq.ReadOptionalASN1(&caPubs, &hasCAPubs, cbasn1.Tag(1).ContextSpecific().Constructed()) {
		return nil, NewDecodingError("malformed caPubs")
	}
	if hasCAPubs {
		certs, err := parseCertificateSequence(caPubs)
		if err != nil {
			return nil, WrapDecodingError(err, "failed to parse caPubs")
		}
		msg.CAPubs = certs
	}

	var responses cryptobyte.String
	if !seq.ReadASN1(&responses, cbasn1.SEQUENCE) || !seq.Empty() {
		return nil, NewDecodingError("malformed CertResponse sequence")
	}
	for !responses.Empty() {
		rsp, err := parseCertResponse(&responses)
		if err != nil {
			return nil, err
		}
		msg.Responses = append(msg.Responses, rsp)
	}
	return msg, nil
}

func parseCertResponse(s *cryptobyte.String) (CertResponse, error) {
	var (
		rsp CertResponse
		seq cryptobyte.String
	)
	if !s.ReadASN1(&seq, cbasn1.SEQUENCE) || !seq.ReadASN1Integer(&rsp.CertReqID) {
		return rsp, NewDecodingError("malformed CertResponse")
	}
	status, err := parseStatusInfo(&seq)
	if err != nil {
		return rsp, err
	}
	rsp.Status = status

	if seq.PeekASN1Tag(cbasn1.SEQUENCE) {
		var kpSeq cryptobyte.String
		if !seq.ReadASN1(&kpSeq, cbasn1.SEQUENCE) {
			return rsp, NewDecodingError("malformed CertifiedKeyPair")
		}
		kp, err := parseCertifiedKeyPair(kpSeq)
		if err != nil {
			return rsp, err
		}
		rsp.CertifiedKeyPair = kp
	}

	var (
		rspInfo    cryptobyte.String
		hasRspInfo bool
	)
	if !seq.ReadOptionalASN1(&rspInfo, &hasRspInfo, cbasn1.OCTET_STRING) || !seq.Empty() {
		return rsp, NewDecodingError("malformed CertResponse rspInfo")
	}
	if hasRspInfo {
		rsp.RspInfo = append([]byte{}, rspInfo...)
	}
	return rsp, nil
}

func parseCertifiedKeyPair(seq cryptobyte.String) (*CertifiedKeyPair, error) {
	kp := &CertifiedKeyPair{}

	var (
		choice cryptobyte.String
		tag    cbasn1.Tag
	)
	if !seq.ReadAnyASN1(&choice, &tag) {
		return nil, NewDecodingError("malformed CertOrEncCert")
	}
	switch tag {
	case cbasn1.Tag(0).ContextSpecific().Constructed():
		var certDER cryptobyte.String
		if !choice.ReadASN1Element(&certDER, cbasn1.SEQUENCE) || !choice.Empty() {
			return nil, NewDecodingError("malformed certificate in CertOrEncCert")
		}
		cert, err := x509.ParseCertificate(certDER)
		if err != nil {
			return nil, WrapDecodingError(err, "failed to parse issued certificate")
		}
		kp.Certificate = cert
	case cbasn1.Tag(1).ContextSpecific().Constructed():
		kp.EncryptedCert = append([]byte{}, choice...)
	default:
		return nil, NewDecodingError(fmt.Sprintf("unexpected CertOrEncCert tag 0x%02x", uint8(tag)))
	}

	var (
		field cryptobyte.String
		has   bool
	)
	if !seq.ReadOptionalASN1(&field, &has, cbasn1.Tag(0).ContextSpecific().Constructed()) {
		return nil, NewDecodingError("malformed CertifiedKeyPair privateKey")
	}
	if has {
		kp.PrivateKey = append([]byte{}, field...)
	}
	if !seq.ReadOptionalASN1(&field, &has, cbasn1.Tag(1).ContextSpecific().Constructed()) || !seq.Empty() {
		return nil, NewDecodingError("malformed CertifiedKeyPair publicationInfo")
	}
	if has {
		kp.PublicationInfo = append([]byte{}, field...)
	}
	return kp, nil
}
