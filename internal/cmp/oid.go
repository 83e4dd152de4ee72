package cmp

import "encoding/asn1"

// InfoTypeAndValue infoType OIDs (RFC 4210 section 5.3.19, id-it arc 1.3.6.1.5.5.7.4)
var (
	OIDITCAProtEncCert    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 1}
	OIDITSignKeyPairTypes = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 2}
	OIDITEncKeyPairTypes  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 3}
	OIDITPreferredSymmAlg = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 4}
	OIDITCAKeyUpdateInfo  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 5}
	OIDITCurrentCRL       = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 6}
	OIDITUnsupportedOIDs  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 7}
	OIDITKeyPairParamReq  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 10}
	OIDITKeyPairParamRep  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 11}
	OIDITRevPassphrase    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 12}
	OIDITImplicitConfirm  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 13}
	OIDITConfirmWaitTime  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 14}
	OIDITOrigPKIMessage   = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 15}
	OIDITSuppLangTags     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 16}
)

// PVNO values
const (
	PVNOCMP1999 = 1
	PVNOCMP2000 = 2
	PVNOCMP2021 = 3
)
