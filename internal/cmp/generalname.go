package cmp

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// GeneralNameTag is the context-specific tag number selecting a GeneralName arm (RFC 5280 4.2.1.6).
type GeneralNameTag int

const (
	GeneralNameOther         GeneralNameTag = 0
	GeneralNameRFC822        GeneralNameTag = 1
	GeneralNameDNS           GeneralNameTag = 2
	GeneralNameX400          GeneralNameTag = 3
	GeneralNameDirectoryName GeneralNameTag = 4
	GeneralNameEDIParty      GeneralNameTag = 5
	GeneralNameURI           GeneralNameTag = 6
	GeneralNameIPAddress     GeneralNameTag = 7
	GeneralNameRegisteredID  GeneralNameTag = 8
)

// nullDN is the DER encoding of an empty Name, used by senders that have no name yet
// (e.g. an initialization request protected by a shared secret).
var nullDN = []byte{0x30, 0x00}

// GeneralName identifies the sender or recipient of a message.
//
// Only the arms the trust engine needs are decoded into fields: directoryName (kept as the DER
// encoding of the Name so it can be compared with certificate subjects) and the IA5String arms.
// Every decoded name also keeps its complete TLV in Raw, which the encoder re-emits unchanged.
type GeneralName struct {
	Tag GeneralNameTag

	// DirectoryName is the DER encoded Name when Tag is GeneralNameDirectoryName
	DirectoryName []byte

	// Text holds rfc822Name, dNSName and uniformResourceIdentifier values
	Text string

	// Raw is the complete DER TLV of the name as received
	Raw []byte
}

// NewDirectoryName returns a directoryName GeneralName for the supplied pkix.Name.
func NewDirectoryName(name pkix.Name) (GeneralName, error) {
	der, err := asn1.Marshal(name.ToRDNSequence())
	if err != nil {
		return GeneralName{}, WrapEncodingError(err, "failed to marshal directory name")
	}
	return GeneralName{Tag: GeneralNameDirectoryName, DirectoryName: der}, nil
}

// NewRawDirectoryName returns a directoryName GeneralName for an already DER encoded Name
// such as x509.Certificate.RawSubject.
func NewRawDirectoryName(der []byte) GeneralName {
	return GeneralName{Tag: GeneralNameDirectoryName, DirectoryName: der}
}

// NullDirectoryName returns the directoryName holding an empty Name.
func NullDirectoryName() GeneralName {
	return NewRawDirectoryName(nullDN)
}

// IsDirectoryName reports whether g holds a directoryName.
func (g GeneralName) IsDirectoryName() bool {
	return g.Tag == GeneralNameDirectoryName && len(g.DirectoryName) > 0
}

// IsNullDN reports whether g is a directoryName holding an empty Name.
func (g GeneralName) IsNullDN() bool {
	if !g.IsDirectoryName() {
		return false
	}
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(g.DirectoryName, &rdns)
	return err == nil && len(rest) == 0 && len(rdns) == 0
}

// Name parses the directoryName into a pkix.Name.
func (g GeneralName) Name() (pkix.Name, error) {
	var name pkix.Name
	if !g.IsDirectoryName() {
		return name, NewDecodingError(fmt.Sprintf("general name is not a directoryName (tag %d)", g.Tag))
	}
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(g.DirectoryName, &rdns)
	if err != nil {
		return name, WrapDecodingError(err, "failed to parse directory name")
	}
	if len(rest) != 0 {
		return name, NewDecodingError("trailing data after directory name")
	}
	name.FillFromRDNSequence(&rdns)
	return name, nil
}

// String returns a human readable form for logging.
func (g GeneralName) String() string {
	switch g.Tag {
	case GeneralNameDirectoryName:
		name, err := g.Name()
		if err != nil {
			return "<invalid directoryName>"
		}
		if s := name.String(); s != "" {
			return s
		}
		return "<NULL-DN>"
	case GeneralNameRFC822, GeneralNameDNS, GeneralNameURI:
		return g.Text
	default:
		return fmt.Sprintf("<general name tag %d>", g.Tag)
	}
}

func parseGeneralName(s *cryptobyte.String) (GeneralName, error) {
	var (
		element cryptobyte.String
		tag     cbasn1.Tag
	)
	if !s.ReadAnyASN1Element(&element, &tag) {
		return GeneralName{}, NewDecodingError("malformed general name")
	}
	if tag&0xc0 != 0x80 {
		return GeneralName{}, NewDecodingError(fmt.Sprintf("general name has non context-specific tag 0x%02x", uint8(tag)))
	}

	g := GeneralName{
		Tag: GeneralNameTag(tag & 0x1f),
		Raw: append([]byte(nil), element...),
	}

	var content cryptobyte.String
	if !element.ReadAnyASN1(&content, &tag) {
		return GeneralName{}, NewDecodingError("malformed general name content")
	}

	switch g.Tag {
	case GeneralNameDirectoryName:
		var name cryptobyte.String
		if !content.ReadASN1Element(&name, cbasn1.SEQUENCE) || !content.Empty() {
			return GeneralName{}, NewDecodingError("malformed directoryName")
		}
		g.DirectoryName = append([]byte(nil), name...)
	case GeneralNameRFC822, GeneralNameDNS, GeneralNameURI:
		g.Text = string(content)
	}
	return g, nil
}

func addGeneralName(b *cryptobyte.Builder, g GeneralName) {
	if len(g.Raw) > 0 {
		b.AddBytes(g.Raw)
		return
	}
	tag := cbasn1.Tag(g.Tag).ContextSpecific()
	switch g.Tag {
	case GeneralNameDirectoryName:
		if len(g.DirectoryName) == 0 {
			b.SetError(NewEncodingError("directoryName without a Name"))
			return
		}
		b.AddASN1(tag.Constructed(), func(b *cryptobyte.Builder) {
			b.AddBytes(g.DirectoryName)
		})
	case GeneralNameRFC822, GeneralNameDNS, GeneralNameURI:
		b.AddASN1(tag, func(b *cryptobyte.Builder) {
			b.AddBytes([]byte(g.Text))
		})
	default:
		b.SetError(NewEncodingError(fmt.Sprintf("cannot encode general name with tag %d without raw bytes", g.Tag)))
	}
}
