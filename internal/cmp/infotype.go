package cmp

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// InfoTypeAndValue is an entry of generalInfo or of a genm/genp body.
//
// Value is nil when the infoValue is absent (as in most genm requests). Known info types decode
// into the typed values below; anything else is carried as OpaqueInfoValue.
type InfoTypeAndValue struct {
	Type  asn1.ObjectIdentifier
	Value InfoValue
}

// InfoValue is the union of infoValue payloads.
type InfoValue interface {
	marshalInfoValue(b *cryptobyte.Builder)
}

// CAProtEncCertValue is the CA certificate to use for encrypting to the CA.
type CAProtEncCertValue struct {
	Certificate *x509.Certificate
}

// KeyPairTypesValue lists algorithms (signKeyPairTypes, encKeyPairTypes).
type KeyPairTypesValue struct {
	Algorithms []pkix.AlgorithmIdentifier
}

// AlgorithmValue carries a single algorithm (preferredSymmAlg, keyPairParamRep).
type AlgorithmValue struct {
	Algorithm pkix.AlgorithmIdentifier
}

// CurrentCRLValue is the CA's latest CRL.
type CurrentCRLValue struct {
	CRL *x509.RevocationList
}

// OIDListValue lists object identifiers (unsupportedOIDs).
type OIDListValue struct {
	OIDs []asn1.ObjectIdentifier
}

// OIDValue is a single object identifier (keyPairParamReq).
type OIDValue struct {
	OID asn1.ObjectIdentifier
}

// ImplicitConfirmValue is the NULL value of implicitConfirm.
type ImplicitConfirmValue struct{}

// ConfirmWaitTimeValue is the time the CA waits for a certConf.
type ConfirmWaitTimeValue struct {
	Time time.Time
}

// LangTagsValue lists language tags (suppLangTags).
type LangTagsValue struct {
	Tags []string
}

// OpaqueInfoValue carries the DER of an infoValue that is not interpreted.
type OpaqueInfoValue struct {
	Raw []byte
}

func (v *CAProtEncCertValue) marshalInfoValue(b *cryptobyte.Builder) {
	addCertificate(b, v.Certificate, "caProtEncCert")
}

func (v *KeyPairTypesValue) marshalInfoValue(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, alg := range v.Algorithms {
			addAlgorithmIdentifier(b, alg)
		}
	})
}

func (v *AlgorithmValue) marshalInfoValue(b *cryptobyte.Builder) {
	addAlgorithmIdentifier(b, v.Algorithm)
}

func (v *CurrentCRLValue) marshalInfoValue(b *cryptobyte.Builder) {
	if v.CRL == nil || len(v.CRL.Raw) == 0 {
		b.SetError(NewEncodingError("currentCRL is missing"))
		return
	}
	b.AddBytes(v.CRL.Raw)
}

func (v *OIDListValue) marshalInfoValue(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, oid := range v.OIDs {
			b.AddASN1ObjectIdentifier(oid)
		}
	})
}

func (v *OIDValue) marshalInfoValue(b *cryptobyte.Builder) {
	b.AddASN1ObjectIdentifier(v.OID)
}

func (*ImplicitConfirmValue) marshalInfoValue(b *cryptobyte.Builder) {
	b.AddASN1NULL()
}

func (v *ConfirmWaitTimeValue) marshalInfoValue(b *cryptobyte.Builder) {
	b.AddASN1GeneralizedTime(v.Time.UTC())
}

func (v *LangTagsValue) marshalInfoValue(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, tag := range v.Tags {
			b.AddASN1(cbasn1.UTF8String, func(b *cryptobyte.Builder) {
				b.AddBytes([]byte(tag))
			})
		}
	})
}

func (v *OpaqueInfoValue) marshalInfoValue(b *cryptobyte.Builder) {
	if len(v.Raw) == 0 {
		b.SetError(NewEncodingError("opaque info value has no content"))
		return
	}
	b.AddBytes(v.Raw)
}

func addInfoTypeAndValues(b *cryptobyte.Builder, items []InfoTypeAndValue) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, item := range items {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(item.Type)
				if item.Value != nil {
					item.Value.marshalInfoValue(b)
				}
			})
		}
	})
}

func parseInfoTypeAndValues(s *cryptobyte.String) ([]InfoTypeAndValue, error) {
	var seq cryptobyte.String
	if !s.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return nil, NewDecodingError("malformed InfoTypeAndValue sequence")
	}
	items := []InfoTypeAndValue{}
	for !seq.Empty() {
		var (
			entry cryptobyte.String
			item  InfoTypeAndValue
		)
		if !seq.ReadASN1(&entry, cbasn1.SEQUENCE) || !entry.ReadASN1ObjectIdentifier(&item.Type) {
			return nil, NewDecodingError("malformed InfoTypeAndValue")
		}
		if !entry.Empty() {
			var raw cryptobyte.String
			var tag cbasn1.Tag
			if !entry.ReadAnyASN1Element(&raw, &tag) || !entry.Empty() {
				return nil, NewDecodingError(fmt.Sprintf("malformed infoValue for %s", item.Type))
			}
			value, err := parseInfoValue(item.Type, raw)
			if err != nil {
				return nil, err
			}
			item.Value = value
		}
		items = append(items, item)
	}
	return items, nil
}

func parseInfoValue(infoType asn1.ObjectIdentifier, raw cryptobyte.String) (InfoValue, error) {
	bad := func(err error) error {
		if err != nil {
			return WrapDecodingError(err, fmt.Sprintf("malformed infoValue for %s", infoType))
		}
		return NewDecodingError(fmt.Sprintf("malformed infoValue for %s", infoType))
	}
	s := raw

	switch {
	case infoType.Equal(OIDITCAProtEncCert):
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, bad(err)
		}
		return &CAProtEncCertValue{Certificate: cert}, nil

	case infoType.Equal(OIDITSignKeyPairTypes), infoType.Equal(OIDITEncKeyPairTypes):
		var seq cryptobyte.String
		if !s.ReadASN1(&seq, cbasn1.SEQUENCE) {
			return nil, bad(nil)
		}
		v := &KeyPairTypesValue{}
		for !seq.Empty() {
			alg, err := parseAlgorithmIdentifier(&seq)
			if err != nil {
				return nil, bad(err)
			}
			v.Algorithms = append(v.Algorithms, alg)
		}
		return v, nil

	case infoType.Equal(OIDITPreferredSymmAlg), infoType.Equal(OIDITKeyPairParamRep):
		alg, err := parseAlgorithmIdentifier(&s)
		if err != nil {
			return nil, bad(err)
		}
		return &AlgorithmValue{Algorithm: alg}, nil

	case infoType.Equal(OIDITCurrentCRL):
		crl, err := x509.ParseRevocationList(raw)
		if err != nil {
			return nil, bad(err)
		}
		return &CurrentCRLValue{CRL: crl}, nil

	case infoType.Equal(OIDITUnsupportedOIDs):
		var seq cryptobyte.String
		if !s.ReadASN1(&seq, cbasn1.SEQUENCE) {
			return nil, bad(nil)
		}
		v := &OIDListValue{}
		for !seq.Empty() {
			var oid asn1.ObjectIdentifier
			if !seq.ReadASN1ObjectIdentifier(&oid) {
				return nil, bad(nil)
			}
			v.OIDs = append(v.OIDs, oid)
		}
		return v, nil

	case infoType.Equal(OIDITKeyPairParamReq):
		var oid asn1.ObjectIdentifier
		if !s.ReadASN1ObjectIdentifier(&oid) {
			return nil, bad(nil)
		}
		return &OIDValue{OID: oid}, nil

	case infoType.Equal(OIDITImplicitConfirm):
		var null cryptobyte.String
		if !s.ReadASN1(&null, cbasn1.NULL) || !null.Empty() {
			return nil, bad(nil)
		}
		return &ImplicitConfirmValue{}, nil

	case infoType.Equal(OIDITConfirmWaitTime):
		var t time.Time
		if !s.ReadASN1GeneralizedTime(&t) {
			return nil, bad(nil)
		}
		return &ConfirmWaitTimeValue{Time: t}, nil

	case infoType.Equal(OIDITSuppLangTags):
		var seq cryptobyte.String
		if !s.ReadASN1(&seq, cbasn1.SEQUENCE) {
			return nil, bad(nil)
		}
		v := &LangTagsValue{}
		for !seq.Empty() {
			var tag cryptobyte.String
			if !seq.ReadASN1(&tag, cbasn1.UTF8String) {
				return nil, bad(nil)
			}
			v.Tags = append(v.Tags, string(tag))
		}
		return v, nil
	}

	return &OpaqueInfoValue{Raw: append([]byte(nil), raw...)}, nil
}

// FindInfo returns the first item of the given type.
func FindInfo(items []InfoTypeAndValue, infoType asn1.ObjectIdentifier) (InfoTypeAndValue, bool) {
	for _, item := range items {
		if item.Type.Equal(infoType) {
			return item, true
		}
	}
	return InfoTypeAndValue{}, false
}
