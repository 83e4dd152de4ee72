package crypto

// algorithm.go - registry of the protection algorithms accepted on CMP messages.
//
// Shared-secret protection uses PasswordBasedMac (RFC 4210 section 5.1.3.1) or PBMAC1 (RFC 9481).
// Signature protection covers the RSA, RSASSA-PSS, ECDSA and EdDSA identifiers of RFC 9481
// plus the SHA-3 variants. Every digest is computed with an explicit constructor so the registry
// does not depend on hash registration side effects.

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Protection scheme identifiers
var (
	OIDPasswordBasedMAC = asn1.ObjectIdentifier{1, 2, 840, 113533, 7, 66, 13}
	OIDDHBasedMAC       = asn1.ObjectIdentifier{1, 2, 840, 113533, 7, 66, 30}
	OIDPBMAC1           = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 14}
	OIDPBKDF2           = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}
)

// HMAC identifiers
var (
	OIDHMACSHA1       = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 8, 1, 2}
	OIDHMACWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 7}
	OIDHMACWithSHA224 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 8}
	OIDHMACWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}
	OIDHMACWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 10}
	OIDHMACWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 11}
)

// Digest identifiers, used as the PasswordBasedMac one-way function and as RSASSA-PSS hashes
var (
	OIDSHA1     = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OIDSHA224   = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}
	OIDSHA256   = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDSHA384   = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDSHA512   = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
	OIDSHA3_224 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 7}
	OIDSHA3_256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 8}
	OIDSHA3_384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 9}
	OIDSHA3_512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 10}
	OIDMGF1     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}
)

// Signature identifiers
var (
	OIDSignatureSHA1WithRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	OIDSignatureSHA224WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 14}
	OIDSignatureSHA256WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	OIDSignatureSHA384WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	OIDSignatureSHA512WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	OIDSignatureRSAPSS          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	OIDSignatureSHA3_224WithRSA = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 13}
	OIDSignatureSHA3_256WithRSA = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 14}
	OIDSignatureSHA3_384WithRSA = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 15}
	OIDSignatureSHA3_512WithRSA = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 16}

	OIDSignatureECDSAWithSHA1     = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 1}
	OIDSignatureECDSAWithSHA224   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 1}
	OIDSignatureECDSAWithSHA256   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	OIDSignatureECDSAWithSHA384   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	OIDSignatureECDSAWithSHA512   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
	OIDSignatureECDSAWithSHA3_224 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 9}
	OIDSignatureECDSAWithSHA3_256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 10}
	OIDSignatureECDSAWithSHA3_384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 11}
	OIDSignatureECDSAWithSHA3_512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 12}

	OIDSignatureEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}
	OIDSignatureEd448   = asn1.ObjectIdentifier{1, 3, 101, 113}
)

// ProtectionKind says which verifier an algorithm identifier selects.
type ProtectionKind int

const (
	ProtectionUnknown ProtectionKind = iota
	ProtectionMAC
	ProtectionSignature
)

func (k ProtectionKind) String() string {
	switch k {
	case ProtectionMAC:
		return "mac"
	case ProtectionSignature:
		return "signature"
	default:
		return "unknown"
	}
}

// ClassifyProtection reports whether alg names a shared-secret scheme or a signature scheme.
//
// DHBasedMac is reported as a MAC so callers reach VerifyMAC, which rejects it as unsupported.
func ClassifyProtection(alg pkix.AlgorithmIdentifier) ProtectionKind {
	switch {
	case alg.Algorithm.Equal(OIDPasswordBasedMAC),
		alg.Algorithm.Equal(OIDPBMAC1),
		alg.Algorithm.Equal(OIDDHBasedMAC):
		return ProtectionMAC
	}
	if _, ok := findSignatureAlgorithm(alg.Algorithm); ok {
		return ProtectionSignature
	}
	return ProtectionUnknown
}

// Digest is a hash function known to the registry.
type Digest struct {
	Name string
	Hash crypto.Hash
	New  func() hash.Hash
}

// Sum returns the digest of data.
func (d Digest) Sum(data []byte) []byte {
	h := d.New()
	h.Write(data)
	return h.Sum(nil)
}

var (
	digestSHA1     = Digest{Name: "SHA-1", Hash: crypto.SHA1, New: sha1.New}
	digestSHA224   = Digest{Name: "SHA-224", Hash: crypto.SHA224, New: sha256.New224}
	digestSHA256   = Digest{Name: "SHA-256", Hash: crypto.SHA256, New: sha256.New}
	digestSHA384   = Digest{Name: "SHA-384", Hash: crypto.SHA384, New: sha512.New384}
	digestSHA512   = Digest{Name: "SHA-512", Hash: crypto.SHA512, New: sha512.New}
	digestSHA3_224 = Digest{Name: "SHA3-224", Hash: crypto.SHA3_224, New: sha3.New224}
	digestSHA3_256 = Digest{Name: "SHA3-256", Hash: crypto.SHA3_256, New: sha3.New256}
	digestSHA3_384 = Digest{Name: "SHA3-384", Hash: crypto.SHA3_384, New: sha3.New384}
	digestSHA3_512 = Digest{Name: "SHA3-512", Hash: crypto.SHA3_512, New: sha3.New512}
)

var digestsByOID = []struct {
	oid    asn1.ObjectIdentifier
	digest Digest
}{
	{OIDSHA1, digestSHA1},
	{OIDSHA224, digestSHA224},
	{OIDSHA256, digestSHA256},
	{OIDSHA384, digestSHA384},
	{OIDSHA512, digestSHA512},
	{OIDSHA3_224, digestSHA3_224},
	{OIDSHA3_256, digestSHA3_256},
	{OIDSHA3_384, digestSHA3_384},
	{OIDSHA3_512, digestSHA3_512},
}

var hmacsByOID = []struct {
	oid    asn1.ObjectIdentifier
	digest Digest
}{
	{OIDHMACSHA1, digestSHA1},
	{OIDHMACWithSHA1, digestSHA1},
	{OIDHMACWithSHA224, digestSHA224},
	{OIDHMACWithSHA256, digestSHA256},
	{OIDHMACWithSHA384, digestSHA384},
	{OIDHMACWithSHA512, digestSHA512},
}

// LookupDigest resolves a digest algorithm identifier.
func LookupDigest(oid asn1.ObjectIdentifier) (Digest, error) {
	for _, d := range digestsByOID {
		if d.oid.Equal(oid) {
			return d.digest, nil
		}
	}
	return Digest{}, NewUnsupportedAlgorithmError(fmt.Sprintf("unsupported digest algorithm %s", oid))
}

// LookupHMAC resolves an HMAC algorithm identifier to its underlying digest.
func LookupHMAC(oid asn1.ObjectIdentifier) (Digest, error) {
	for _, d := range hmacsByOID {
		if d.oid.Equal(oid) {
			return d.digest, nil
		}
	}
	return Digest{}, NewUnsupportedAlgorithmError(fmt.Sprintf("unsupported MAC algorithm %s", oid))
}

// SignatureScheme is the public key algorithm family of a signature algorithm.
type SignatureScheme int

const (
	SchemeRSA SignatureScheme = iota + 1
	SchemeRSAPSS
	SchemeECDSA
	SchemeEd25519
	SchemeEd448
)

// SignatureAlgorithm is an entry of the signature registry.
//
// Digest is the zero value for the EdDSA schemes, which sign the message itself.
type SignatureAlgorithm struct {
	Name   string
	OID    asn1.ObjectIdentifier
	Scheme SignatureScheme
	Digest Digest
}

var signatureAlgorithms = []SignatureAlgorithm{
	{"SHA1-RSA", OIDSignatureSHA1WithRSA, SchemeRSA, digestSHA1},
	{"SHA224-RSA", OIDSignatureSHA224WithRSA, SchemeRSA, digestSHA224},
	{"SHA256-RSA", OIDSignatureSHA256WithRSA, SchemeRSA, digestSHA256},
	{"SHA384-RSA", OIDSignatureSHA384WithRSA, SchemeRSA, digestSHA384},
	{"SHA512-RSA", OIDSignatureSHA512WithRSA, SchemeRSA, digestSHA512},
	{"SHA3-224-RSA", OIDSignatureSHA3_224WithRSA, SchemeRSA, digestSHA3_224},
	{"SHA3-256-RSA", OIDSignatureSHA3_256WithRSA, SchemeRSA, digestSHA3_256},
	{"SHA3-384-RSA", OIDSignatureSHA3_384WithRSA, SchemeRSA, digestSHA3_384},
	{"SHA3-512-RSA", OIDSignatureSHA3_512WithRSA, SchemeRSA, digestSHA3_512},
	{"RSASSA-PSS", OIDSignatureRSAPSS, SchemeRSAPSS, Digest{}},
	{"ECDSA-SHA1", OIDSignatureECDSAWithSHA1, SchemeECDSA, digestSHA1},
	{"ECDSA-SHA224", OIDSignatureECDSAWithSHA224, SchemeECDSA, digestSHA224},
	{"ECDSA-SHA256", OIDSignatureECDSAWithSHA256, SchemeECDSA, digestSHA256},
	{"ECDSA-SHA384", OIDSignatureECDSAWithSHA384, SchemeECDSA, digestSHA384},
	{"ECDSA-SHA512", OIDSignatureECDSAWithSHA512, SchemeECDSA, digestSHA512},
	{"ECDSA-SHA3-224", OIDSignatureECDSAWithSHA3_224, SchemeECDSA, digestSHA3_224},
	{"ECDSA-SHA3-256", OIDSignatureECDSAWithSHA3_256, SchemeECDSA, digestSHA3_256},
	{"ECDSA-SHA3-384", OIDSignatureECDSAWithSHA3_384, SchemeECDSA, digestSHA3_384},
	{"ECDSA-SHA3-512", OIDSignatureECDSAWithSHA3_512, SchemeECDSA, digestSHA3_512},
	{"Ed25519", OIDSignatureEd25519, SchemeEd25519, Digest{}},
	{"Ed448", OIDSignatureEd448, SchemeEd448, Digest{}},
}

func findSignatureAlgorithm(oid asn1.ObjectIdentifier) (SignatureAlgorithm, bool) {
	for _, alg := range signatureAlgorithms {
		if alg.OID.Equal(oid) {
			return alg, true
		}
	}
	return SignatureAlgorithm{}, false
}

// pssParameters is RSASSA-PSS-params (RFC 4055).
type pssParameters struct {
	Hash         pkix.AlgorithmIdentifier `asn1:"explicit,tag:0,optional"`
	MGF          pkix.AlgorithmIdentifier `asn1:"explicit,tag:1,optional"`
	SaltLength   int                      `asn1:"explicit,tag:2,optional,default:20"`
	TrailerField int                      `asn1:"explicit,tag:3,optional,default:1"`
}

// resolvedSignature is a registry entry with its parameters applied.
type resolvedSignature struct {
	SignatureAlgorithm
	saltLength int
}

// LookupSignatureAlgorithm resolves a signature algorithm identifier, including RSASSA-PSS
// parameters, to a registry entry.
func LookupSignatureAlgorithm(alg pkix.AlgorithmIdentifier) (SignatureAlgorithm, error) {
	r, err := resolveSignature(alg)
	if err != nil {
		return SignatureAlgorithm{}, err
	}
	return r.SignatureAlgorithm, nil
}

func resolveSignature(alg pkix.AlgorithmIdentifier) (resolvedSignature, error) {
	entry, ok := findSignatureAlgorithm(alg.Algorithm)
	if !ok {
		return resolvedSignature{}, NewUnsupportedAlgorithmError(fmt.Sprintf("unsupported signature algorithm %s", alg.Algorithm))
	}
	if entry.Scheme != SchemeRSAPSS {
		return resolvedSignature{SignatureAlgorithm: entry}, nil
	}

	params := pssParameters{SaltLength: 20, TrailerField: 1}
	if len(alg.Parameters.FullBytes) > 0 && !isASN1Null(alg.Parameters.FullBytes) {
		rest, err := asn1.Unmarshal(alg.Parameters.FullBytes, &params)
		if err != nil || len(rest) != 0 {
			return resolvedSignature{}, NewValidationError("malformed RSASSA-PSS parameters")
		}
	}

	hashOID := OIDSHA1
	if len(params.Hash.Algorithm) > 0 {
		hashOID = params.Hash.Algorithm
	}
	digest, err := LookupDigest(hashOID)
	if err != nil {
		return resolvedSignature{}, err
	}

	mgfHash := OIDSHA1
	if len(params.MGF.Algorithm) > 0 {
		if !params.MGF.Algorithm.Equal(OIDMGF1) {
			return resolvedSignature{}, NewUnsupportedAlgorithmError(fmt.Sprintf("unsupported RSASSA-PSS mask generation function %s", params.MGF.Algorithm))
		}
		var mgfHashAlg pkix.AlgorithmIdentifier
		if _, err := asn1.Unmarshal(params.MGF.Parameters.FullBytes, &mgfHashAlg); err != nil {
			return resolvedSignature{}, NewValidationError("malformed RSASSA-PSS MGF1 parameters")
		}
		mgfHash = mgfHashAlg.Algorithm
	}
	if !mgfHash.Equal(hashOID) {
		return resolvedSignature{}, NewUnsupportedAlgorithmError("RSASSA-PSS with different message and MGF1 hashes is not supported")
	}
	if params.TrailerField != 1 || params.SaltLength < 0 {
		return resolvedSignature{}, NewValidationError("invalid RSASSA-PSS parameters")
	}

	entry.Name = "RSASSA-PSS-" + digest.Name
	entry.Digest = digest
	return resolvedSignature{SignatureAlgorithm: entry, saltLength: params.SaltLength}, nil
}

func isASN1Null(der []byte) bool {
	return len(der) == 2 && der[0] == 0x05 && der[1] == 0x00
}
