// cmp package holds the CMP (RFC 4210) message schema used by the trust engine.
//
// It covers the PKIMessage structure (header, body, protection, extraCerts), the 27 PKIBody
// variants and the InfoTypeAndValue extension union, together with a DER decoder and encoder.
//
// The encoder is used to produce the protected part (header + body) that protection values are
// computed over. Decoded messages keep the raw header and body bytes exactly as received and
// ProtectedPart() prefers those over a re-encoding - see message.go.
package cmp
