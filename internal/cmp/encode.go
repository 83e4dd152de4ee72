package cmp

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// EncodeProtectedPart returns the canonical DER encoding of SEQUENCE { header, body }.
//
// The result is a pure function of its inputs: equal header and body values always give
// identical bytes.
func EncodeProtectedPart(h *Header, body Body) ([]byte, error) {
	if h == nil {
		return nil, NewEncodingError("header is missing")
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addHeader(b, h)
		addBody(b, body)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, wrapBuilderError(err, "failed to encode protected part")
	}
	return der, nil
}

// Marshal returns the DER encoding of the complete message from its in-memory fields.
func Marshal(m *Message) ([]byte, error) {
	if m == nil {
		return nil, NewEncodingError("message is missing")
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addHeader(b, &m.Header)
		addBody(b, m.Body)
		if m.Protection != nil {
			b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
				b.AddASN1BitString(m.Protection.Bytes)
			})
		}
		if len(m.ExtraCerts) > 0 {
			b.AddASN1(cbasn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					for i, cert := range m.ExtraCerts {
						addCertificate(b, cert, fmt.Sprintf("extraCerts[%d]", i))
					}
				})
			})
		}
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, wrapBuilderError(err, "failed to encode message")
	}
	return der, nil
}

func addHeader(b *cryptobyte.Builder, h *Header) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(h.PVNO)
		addGeneralName(b, h.Sender)
		addGeneralName(b, h.Recipient)
		if !h.MessageTime.IsZero() {
			addExplicit(b, 0, func(b *cryptobyte.Builder) {
				b.AddASN1GeneralizedTime(h.MessageTime.UTC())
			})
		}
		if h.ProtectionAlg != nil {
			addExplicit(b, 1, func(b *cryptobyte.Builder) {
				addAlgorithmIdentifier(b, *h.ProtectionAlg)
			})
		}
		addOptionalOctets(b, 2, h.SenderKID)
		addOptionalOctets(b, 3, h.RecipKID)
		addOptionalOctets(b, 4, h.TransactionID)
		addOptionalOctets(b, 5, h.SenderNonce)
		addOptionalOctets(b, 6, h.RecipNonce)
		if h.FreeText != nil {
			addExplicit(b, 7, func(b *cryptobyte.Builder) {
				addFreeText(b, h.FreeText)
			})
		}
		if len(h.GeneralInfo) > 0 {
			addExplicit(b, 8, func(b *cryptobyte.Builder) {
				addInfoTypeAndValues(b, h.GeneralInfo)
			})
		}
	})
}

func addBody(b *cryptobyte.Builder, body Body) {
	if body == nil {
		b.SetError(NewEncodingError("body is missing"))
		return
	}
	if !body.Type().Valid() {
		b.SetError(NewEncodingError(fmt.Sprintf("unknown body type %d", int(body.Type()))))
		return
	}
	addExplicit(b, int(body.Type()), body.marshalContent)
}

func addExplicit(b *cryptobyte.Builder, tag int, f cryptobyte.BuilderContinuation) {
	b.AddASN1(cbasn1.Tag(tag).ContextSpecific().Constructed(), f)
}

func addOptionalOctets(b *cryptobyte.Builder, tag int, v []byte) {
	if v == nil {
		return
	}
	addExplicit(b, tag, func(b *cryptobyte.Builder) {
		b.AddASN1OctetString(v)
	})
}

// wrapBuilderError keeps CMPErrors set on the builder and wraps anything else.
func wrapBuilderError(err error, msg string) error {
	if _, ok := err.(Error); ok {
		return err
	}
	return WrapEncodingError(err, msg)
}
