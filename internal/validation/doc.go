// Package validation decides whether a received CMP message can be trusted.
//
// ValidateMessage is the entry point. It checks the message protection, either a shared-secret
// MAC or a signature, and for signatures finds and validates the sender certificate:
//
//  1. a certificate pinned in the Context is used as is
//  2. a certificate cached by an earlier message of the same transaction is reused
//  3. otherwise candidates are looked up in the trusted store, the untrusted pool and the
//     message's extraCerts, in that order, and the first candidate with a valid path wins
//  4. optionally, for initialization responses only, self-signed certificates in extraCerts
//     may serve as trust anchors (PermitTAInExtraCertsForIR)
//
// A Context belongs to one CMP transaction and is not safe for concurrent use.
package validation
