package crypto

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"reflect"
	"strings"
)

// NamesEqual compares two DER encoded distinguished names.
//
// Identical encodings are equal. Otherwise both names are parsed and compared RDN by RDN:
// attribute types must match and string values are compared case-insensitively with
// leading, trailing and repeated internal whitespace ignored.
func NamesEqual(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var rdnsA, rdnsB pkix.RDNSequence
	if rest, err := asn1.Unmarshal(a, &rdnsA); err != nil || len(rest) != 0 {
		return false
	}
	if rest, err := asn1.Unmarshal(b, &rdnsB); err != nil || len(rest) != 0 {
		return false
	}
	if len(rdnsA) != len(rdnsB) {
		return false
	}
	for i := range rdnsA {
		if !rdnEqual(rdnsA[i], rdnsB[i]) {
			return false
		}
	}
	return true
}

// rdnEqual compares two multi-valued RDNs as sets.
func rdnEqual(a, b pkix.RelativeDistinguishedNameSET) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, atvA := range a {
		for j, atvB := range b {
			if !used[j] && attributeEqual(atvA, atvB) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

func attributeEqual(a, b pkix.AttributeTypeAndValue) bool {
	if !a.Type.Equal(b.Type) {
		return false
	}
	sa, okA := a.Value.(string)
	sb, okB := b.Value.(string)
	if okA && okB {
		return canonicalString(sa) == canonicalString(sb)
	}
	return reflect.DeepEqual(a.Value, b.Value)
}

func canonicalString(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// parseName renders a DER encoded Name for messages.
func parseName(der []byte) (string, error) {
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(der, &rdns)
	if err != nil {
		return "", err
	}
	if len(rest) != 0 {
		return "", asn1.SyntaxError{Msg: "trailing data after name"}
	}
	var name pkix.Name
	name.FillFromRDNSequence(&rdns)
	return name.String(), nil
}
