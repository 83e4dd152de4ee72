package crypto

// mac.go - shared-secret protection (PasswordBasedMac, RFC 4210 section 5.1.3.1, and PBMAC1, RFC 9481)

import (
	"crypto/hmac"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PasswordBasedMac iteration count bounds
const (
	MinPBMIterations = 100
	MaxPBMIterations = 100000
)

// MaxPBKDF2Iterations bounds the work a peer can demand through PBMAC1 parameters.
const MaxPBKDF2Iterations = 10000000

// pbmParameter is PBMParameter (RFC 4211 section 4.4).
type pbmParameter struct {
	Salt           []byte
	OWF            pkix.AlgorithmIdentifier
	IterationCount int
	MAC            pkix.AlgorithmIdentifier
}

// pbmac1Params is PBMAC1-params (RFC 8018 appendix A.5).
type pbmac1Params struct {
	KeyDerivationFunc pkix.AlgorithmIdentifier
	MessageAuthScheme pkix.AlgorithmIdentifier
}

// pbkdf2Params is PBKDF2-params (RFC 8018 appendix A.2). Only the specified salt choice is supported.
type pbkdf2Params struct {
	Salt           []byte
	IterationCount int
	KeyLength      int                      `asn1:"optional"`
	PRF            pkix.AlgorithmIdentifier `asn1:"optional"`
}

// VerifyMAC recomputes the shared-secret MAC described by alg over data and compares it with
// expected in constant time.
//
// A mismatch returns an error with code ErrCodeInvalidMAC. DHBasedMac and unknown schemes
// return ErrCodeUnsupportedAlgorithm.
func VerifyMAC(alg pkix.AlgorithmIdentifier, secret, data, expected []byte) error {
	computed, err := ComputeMAC(alg, secret, data)
	if err != nil {
		return err
	}
	if !hmac.Equal(computed, expected) {
		return NewMACError("MAC mismatch")
	}
	return nil
}

// ComputeMAC returns the MAC over data for the scheme and parameters in alg.
func ComputeMAC(alg pkix.AlgorithmIdentifier, secret, data []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, NewValidationError("shared secret is empty")
	}
	switch {
	case alg.Algorithm.Equal(OIDPasswordBasedMAC):
		return computePBM(alg.Parameters.FullBytes, secret, data)
	case alg.Algorithm.Equal(OIDPBMAC1):
		return computePBMAC1(alg.Parameters.FullBytes, secret, data)
	case alg.Algorithm.Equal(OIDDHBasedMAC):
		return nil, NewUnsupportedAlgorithmError("DHBasedMac protection is not supported")
	}
	return nil, NewUnsupportedAlgorithmError(fmt.Sprintf("unsupported MAC protection algorithm %s", alg.Algorithm))
}

func computePBM(paramsDER, secret, data []byte) ([]byte, error) {
	var params pbmParameter
	rest, err := asn1.Unmarshal(paramsDER, &params)
	if err != nil {
		return nil, WrapValidationError(err, "malformed PBMParameter")
	}
	if len(rest) != 0 {
		return nil, NewValidationError("trailing data after PBMParameter")
	}
	if params.IterationCount < MinPBMIterations || params.IterationCount > MaxPBMIterations {
		return nil, NewValidationError(fmt.Sprintf("PBM iteration count %d outside %d..%d",
			params.IterationCount, MinPBMIterations, MaxPBMIterations))
	}

	owf, err := LookupDigest(params.OWF.Algorithm)
	if err != nil {
		return nil, err
	}
	mac, err := LookupHMAC(params.MAC.Algorithm)
	if err != nil {
		return nil, err
	}

	// basekey = OWF^iterationCount(secret || salt)
	h := owf.New()
	h.Write(secret)
	h.Write(params.Salt)
	key := h.Sum(nil)
	for i := 1; i < params.IterationCount; i++ {
		h.Reset()
		h.Write(key)
		key = h.Sum(key[:0])
	}

	m := hmac.New(mac.New, key)
	m.Write(data)
	return m.Sum(nil), nil
}

func computePBMAC1(paramsDER, secret, data []byte) ([]byte, error) {
	var params pbmac1Params
	rest, err := asn1.Unmarshal(paramsDER, &params)
	if err != nil {
		return nil, WrapValidationError(err, "malformed PBMAC1 parameters")
	}
	if len(rest) != 0 {
		return nil, NewValidationError("trailing data after PBMAC1 parameters")
	}
	if !params.KeyDerivationFunc.Algorithm.Equal(OIDPBKDF2) {
		return nil, NewUnsupportedAlgorithmError(fmt.Sprintf("unsupported PBMAC1 key derivation function %s", params.KeyDerivationFunc.Algorithm))
	}

	var kdf pbkdf2Params
	rest, err = asn1.Unmarshal(params.KeyDerivationFunc.Parameters.FullBytes, &kdf)
	if err != nil {
		return nil, WrapValidationError(err, "malformed PBKDF2 parameters")
	}
	if len(rest) != 0 {
		return nil, NewValidationError("trailing data after PBKDF2 parameters")
	}
	if kdf.IterationCount < 1 || kdf.IterationCount > MaxPBKDF2Iterations {
		return nil, NewValidationError(fmt.Sprintf("PBKDF2 iteration count %d outside 1..%d", kdf.IterationCount, MaxPBKDF2Iterations))
	}

	prf := digestSHA1
	if len(kdf.PRF.Algorithm) > 0 {
		if prf, err = LookupHMAC(kdf.PRF.Algorithm); err != nil {
			return nil, err
		}
	}
	mac, err := LookupHMAC(params.MessageAuthScheme.Algorithm)
	if err != nil {
		return nil, err
	}

	keyLength := kdf.KeyLength
	if keyLength == 0 {
		keyLength = mac.New().Size()
	}
	if keyLength < 0 || keyLength > 1024 {
		return nil, NewValidationError(fmt.Sprintf("invalid PBKDF2 key length %d", keyLength))
	}

	key := pbkdf2.Key(secret, kdf.Salt, kdf.IterationCount, keyLength, prf.New)
	m := hmac.New(mac.New, key)
	m.Write(data)
	return m.Sum(nil), nil
}

// NewPasswordBasedMACAlgorithm returns a PasswordBasedMac algorithm identifier.
func NewPasswordBasedMACAlgorithm(salt []byte, owf, mac asn1.ObjectIdentifier, iterations int) (pkix.AlgorithmIdentifier, error) {
	der, err := asn1.Marshal(pbmParameter{
		Salt:           salt,
		OWF:            pkix.AlgorithmIdentifier{Algorithm: owf},
		IterationCount: iterations,
		MAC:            pkix.AlgorithmIdentifier{Algorithm: mac},
	})
	if err != nil {
		return pkix.AlgorithmIdentifier{}, WrapInternalError(err, "failed to marshal PBMParameter")
	}
	return pkix.AlgorithmIdentifier{Algorithm: OIDPasswordBasedMAC, Parameters: asn1.RawValue{FullBytes: der}}, nil
}

// NewPBMAC1Algorithm returns a PBMAC1 algorithm identifier using PBKDF2 with the given PRF.
func NewPBMAC1Algorithm(salt []byte, iterations, keyLength int, prf, mac asn1.ObjectIdentifier) (pkix.AlgorithmIdentifier, error) {
	kdfDER, err := asn1.Marshal(pbkdf2Params{
		Salt:           salt,
		IterationCount: iterations,
		KeyLength:      keyLength,
		PRF:            pkix.AlgorithmIdentifier{Algorithm: prf, Parameters: asn1.NullRawValue},
	})
	if err != nil {
		return pkix.AlgorithmIdentifier{}, WrapInternalError(err, "failed to marshal PBKDF2 parameters")
	}
	der, err := asn1.Marshal(pbmac1Params{
		KeyDerivationFunc: pkix.AlgorithmIdentifier{Algorithm: OIDPBKDF2, Parameters: asn1.RawValue{FullBytes: kdfDER}},
		MessageAuthScheme: pkix.AlgorithmIdentifier{Algorithm: mac, Parameters: asn1.NullRawValue},
	})
	if err != nil {
		return pkix.AlgorithmIdentifier{}, WrapInternalError(err, "failed to marshal PBMAC1 parameters")
	}
	return pkix.AlgorithmIdentifier{Algorithm: OIDPBMAC1, Parameters: asn1.RawValue{FullBytes: der}}, nil
}
