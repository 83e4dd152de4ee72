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

// Decode parses a DER encoded PKIMessage.
//
// The header and body TLVs are retained so that ProtectedPart returns exactly the bytes the
// sender protected.
func Decode(der []byte) (*Message, error) {
	input := cryptobyte.String(der)

	var msgSeq cryptobyte.String
	if !input.ReadASN1(&msgSeq, cbasn1.SEQUENCE) {
		return nil, NewDecodingError("message is not a DER SEQUENCE")
	}
	if !input.Empty() {
		return nil, NewDecodingError("trailing data after message")
	}

	msg := &Message{}

	var rawHeader cryptobyte.String
	if !msgSeq.ReadASN1Element(&rawHeader, cbasn1.SEQUENCE) {
		return nil, NewDecodingError("malformed header")
	}
	header, err := parseHeader(rawHeader)
	if err != nil {
		return nil, err
	}
	msg.Header = header
	msg.rawHeader = append([]byte(nil), rawHeader...)

	var (
		rawBody cryptobyte.String
		tag     cbasn1.Tag
	)
	if !msgSeq.ReadAnyASN1Element(&rawBody, &tag) {
		return nil, NewDecodingError("malformed body")
	}
	body, err := parseBody(rawBody, tag)
	if err != nil {
		return nil, err
	}
	msg.Body = body
	msg.rawBody = append([]byte(nil), rawBody...)

	var (
		prot    cryptobyte.String
		hasProt bool
	)
	if !msgSeq.ReadOptionalASN1(&prot, &hasProt, cbasn1.Tag(0).ContextSpecific().Constructed()) {
		return nil, NewDecodingError("malformed protection")
	}
	if hasProt {
		var bits asn1.BitString
		if !prot.ReadASN1BitString(&bits) || !prot.Empty() {
			return nil, NewDecodingError("protection is not a BIT STRING")
		}
		msg.Protection = &bits
	}

	var (
		extra    cryptobyte.String
		hasExtra bool
	)
	if !msgSeq.ReadOptionalASN1(&extra, &hasExtra, cbasn1.Tag(1).ContextSpecific().Constructed()) {
		return nil, NewDecodingError("malformed extraCerts")
	}
	if hasExtra {
		certs, err := parseCertificateSequence(extra)
		if err != nil {
			return nil, WrapDecodingError(err, "failed to parse extraCerts")
		}
		msg.ExtraCerts = certs
	}

	if !msgSeq.Empty() {
		return nil, NewDecodingError("trailing data in message")
	}
	return msg, nil
}

func parseHeader(raw cryptobyte.String) (Header, error) {
	var (
		h   Header
		seq cryptobyte.String
		err error
	)
	if !raw.ReadASN1(&seq, cbasn1.SEQUENCE) || !seq.ReadASN1Integer(&h.PVNO) {
		return h, NewDecodingError("malformed header pvno")
	}
	if h.Sender, err = parseGeneralName(&seq); err != nil {
		return h, WrapDecodingError(err, "invalid sender")
	}
	if h.Recipient, err = parseGeneralName(&seq); err != nil {
		return h, WrapDecodingError(err, "invalid recipient")
	}

	field := func(n int) (cryptobyte.String, bool, error) {
		var (
			content cryptobyte.String
			present bool
		)
		if !seq.ReadOptionalASN1(&content, &present, cbasn1.Tag(n).ContextSpecific().Constructed()) {
			return nil, false, NewDecodingError(fmt.Sprintf("malformed header field [%d]", n))
		}
		return content, present, nil
	}
	octets := func(n int, name string) ([]byte, error) {
		content, present, err := field(n)
		if err != nil || !present {
			return nil, err
		}
		var v cryptobyte.String
		if !content.ReadASN1(&v, cbasn1.OCTET_STRING) || !content.Empty() {
			return nil, NewDecodingError(fmt.Sprintf("malformed %s", name))
		}
		return append([]byte{}, v...), nil
	}

	content, present, err := field(0)
	if err != nil {
		return h, err
	}
	if present {
		var t time.Time
		if !content.ReadASN1GeneralizedTime(&t) || !content.Empty() {
			return h, NewDecodingError("malformed messageTime")
		}
		h.MessageTime = t
	}

	if content, present, err = field(1); err != nil {
		return h, err
	}
	if present {
		alg, err := parseAlgorithmIdentifier(&content)
		if err != nil {
			return h, WrapDecodingError(err, "malformed protectionAlg")
		}
		if !content.Empty() {
			return h, NewDecodingError("trailing data after protectionAlg")
		}
		h.ProtectionAlg = &alg
	}

	if h.SenderKID, err = octets(2, "senderKID"); err != nil {
		return h, err
	}
	if h.RecipKID, err = octets(3, "recipKID"); err != nil {
		return h, err
	}
	if h.TransactionID, err = octets(4, "transactionID"); err != nil {
		return h, err
	}
	if h.SenderNonce, err = octets(5, "senderNonce"); err != nil {
		return h, err
	}
	if h.RecipNonce, err = octets(6, "recipNonce"); err != nil {
		return h, err
	}

	if content, present, err = field(7); err != nil {
		return h, err
	}
	if present {
		if h.FreeText, err = parseFreeText(&content); err != nil {
			return h, err
		}
	}

	if content, present, err = field(8); err != nil {
		return h, err
	}
	if present {
		if h.GeneralInfo, err = parseInfoTypeAndValues(&content); err != nil {
			return h, WrapDecodingError(err, "malformed generalInfo")
		}
	}

	if !seq.Empty() {
		return h, NewDecodingError("trailing data in header")
	}
	return h, nil
}

func parseBody(raw cryptobyte.String, tag cbasn1.Tag) (Body, error) {
	if tag&0xe0 != 0xa0 {
		return nil, NewDecodingError(fmt.Sprintf("body tag 0x%02x is not context-specific constructed", uint8(tag)))
	}
	kind := BodyType(tag & 0x1f)
	if !kind.Valid() {
		return nil, NewDecodingError(fmt.Sprintf("unknown body type %d", int(kind)))
	}

	var content cryptobyte.String
	if !raw.ReadASN1(&content, tag) {
		return nil, NewDecodingError(fmt.Sprintf("malformed %s body", kind))
	}

	switch kind {
	case BodyIP, BodyCP, BodyKUP, BodyCCP:
		return parseCertRepMessage(kind, content)
	case BodyPKIConf:
		var null cryptobyte.String
		if !content.ReadASN1(&null, cbasn1.NULL) || !null.Empty() || !content.Empty() {
			return nil, NewDecodingError("malformed pkiconf body")
		}
		return &PKIConf{}, nil
	case BodyCAnn:
		cert, err := parseCertificate(&content)
		if err != nil || !content.Empty() {
			return nil, WrapDecodingError(err, "malformed cann body")
		}
		return &CertAnn{Certificate: cert}, nil
	case BodyCKUAnn:
		return parseCAKeyUpdAnn(content)
	case BodyCRLAnn:
		return parseCRLAnn(content)
	case BodyError:
		return parseErrorMsg(content)
	case BodyCertConf:
		return parseCertConf(content)
	case BodyPollReq:
		return parsePollReq(content)
	case BodyPollRep:
		return parsePollRep(content)
	case BodyGenM, BodyGenP:
		items, err := parseInfoTypeAndValues(&content)
		if err != nil {
			return nil, WrapDecodingError(err, fmt.Sprintf("malformed %s body", kind))
		}
		if !content.Empty() {
			return nil, NewDecodingError(fmt.Sprintf("trailing data in %s body", kind))
		}
		return &GenMsg{Kind: kind, Items: items}, nil
	}

	var element cryptobyte.String
	var innerTag cbasn1.Tag
	if !content.ReadAnyASN1Element(&element, &innerTag) || !content.Empty() {
		return nil, NewDecodingError(fmt.Sprintf("malformed %s body", kind))
	}
	return &RawBody{Kind: kind, Content: append([]byte(nil), element...)}, nil
}

func parseCAKeyUpdAnn(content cryptobyte.String) (*CAKeyUpdAnn, error) {
	var seq cryptobyte.String
	if !content.ReadASN1(&seq, cbasn1.SEQUENCE) || !content.Empty() {
		return nil, NewDecodingError("malformed ckuann body")
	}
	var (
		ann CAKeyUpdAnn
		err error
	)
	if ann.OldWithNew, err = parseCertificate(&seq); err != nil {
		return nil, WrapDecodingError(err, "malformed oldWithNew")
	}
	if ann.NewWithOld, err = parseCertificate(&seq); err != nil {
		return nil, WrapDecodingError(err, "malformed newWithOld")
	}
	if ann.NewWithNew, err = parseCertificate(&seq); err != nil {
		return nil, WrapDecodingError(err, "malformed newWithNew")
	}
	if !seq.Empty() {
		return nil, NewDecodingError("trailing data in ckuann body")
	}
	return &ann, nil
}

func parseCRLAnn(content cryptobyte.String) (*CRLAnn, error) {
	var seq cryptobyte.String
	if !content.ReadASN1(&seq, cbasn1.SEQUENCE) || !content.Empty() {
		return nil, NewDecodingError("malformed crlann body")
	}
	ann := &CRLAnn{}
	for !seq.Empty() {
		var der cryptobyte.String
		if !seq.ReadASN1Element(&der, cbasn1.SEQUENCE) {
			return nil, NewDecodingError("malformed CRL in crlann body")
		}
		crl, err := x509.ParseRevocationList(der)
		if err != nil {
			return nil, WrapDecodingError(err, "failed to parse CRL in crlann body")
		}
		ann.CRLs = append(ann.CRLs, crl)
	}
	return ann, nil
}

func parseErrorMsg(content cryptobyte.String) (*ErrorMsg, error) {
	var seq cryptobyte.String
	if !content.ReadASN1(&seq, cbasn1.SEQUENCE) || !content.Empty() {
		return nil, NewDecodingError("malformed error body")
	}
	status, err := parseStatusInfo(&seq)
	if err != nil {
		return nil, err
	}
	msg := &ErrorMsg{Status: status}
	if seq.PeekASN1Tag(cbasn1.INTEGER) {
		var code int64
		if !seq.ReadASN1Integer(&code) {
			return nil, NewDecodingError("malformed errorCode")
		}
		msg.ErrorCode = &code
	}
	if seq.PeekASN1Tag(cbasn1.SEQUENCE) {
		if msg.ErrorDetails, err = parseFreeText(&seq); err != nil {
			return nil, err
		}
	}
	if !seq.Empty() {
		return nil, NewDecodingError("trailing data in error body")
	}
	return msg, nil
}

func parseCertConf(content cryptobyte.String) (*CertConf, error) {
	var seq cryptobyte.String
	if !content.ReadASN1(&seq, cbasn1.SEQUENCE) || !content.Empty() {
		return nil, NewDecodingError("malformed certConf body")
	}
	conf := &CertConf{}
	for !seq.Empty() {
		var (
			entry cryptobyte.String
			hash  cryptobyte.String
			st    CertStatus
		)
		if !seq.ReadASN1(&entry, cbasn1.SEQUENCE) ||
			!entry.ReadASN1(&hash, cbasn1.OCTET_STRING) ||
			!entry.ReadASN1Integer(&st.CertReqID) {
			return nil, NewDecodingError("malformed CertStatus")
		}
		st.CertHash = append([]byte{}, hash...)
		if entry.PeekASN1Tag(cbasn1.SEQUENCE) {
			si, err := parseStatusInfo(&entry)
			if err != nil {
				return nil, err
			}
			st.StatusInfo = &si
		}
		var (
			hashAlg    cryptobyte.String
			hasHashAlg bool
		)
		if !entry.ReadOptionalASN1(&hashAlg, &hasHashAlg, cbasn1.Tag(0).ContextSpecific().Constructed()) {
			return nil, NewDecodingError("malformed CertStatus hashAlg")
		}
		if hasHashAlg {
			alg, err := parseAlgorithmIdentifier(&hashAlg)
			if err != nil {
				return nil, WrapDecodingError(err, "malformed CertStatus hashAlg")
			}
			st.HashAlg = &alg
		}
		if !entry.Empty() {
			return nil, NewDecodingError("trailing data in CertStatus")
		}
		conf.Statuses = append(conf.Statuses, st)
	}
	return conf, nil
}

func parsePollReq(content cryptobyte.String) (*PollReq, error) {
	var seq cryptobyte.String
	if !content.ReadASN1(&seq, cbasn1.SEQUENCE) || !content.Empty() {
		return nil, NewDecodingError("malformed pollReq body")
	}
	req := &PollReq{}
	for !seq.Empty() {
		var (
			entry cryptobyte.String
			id    int64
		)
		if !seq.ReadASN1(&entry, cbasn1.SEQUENCE) || !entry.ReadASN1Integer(&id) || !entry.Empty() {
			return nil, NewDecodingError("malformed pollReq entry")
		}
		req.CertReqIDs = append(req.CertReqIDs, id)
	}
	return req, nil
}

func parsePollRep(content cryptobyte.String) (*PollRep, error) {
	var seq cryptobyte.String
	if !content.ReadASN1(&seq, cbasn1.SEQUENCE) || !content.Empty() {
		return nil, NewDecodingError("malformed pollRep body")
	}
	rep := &PollRep{}
	for !seq.Empty() {
		var (
			entry cryptobyte.String
			e     PollRepEntry
		)
		if !seq.ReadASN1(&entry, cbasn1.SEQUENCE) ||
			!entry.ReadASN1Integer(&e.CertReqID) ||
			!entry.ReadASN1Integer(&e.CheckAfter) {
			return nil, NewDecodingError("malformed pollRep entry")
		}
		if !entry.Empty() {
			reason, err := parseFreeText(&entry)
			if err != nil {
				return nil, err
			}
			e.Reason = reason
		}
		if !entry.Empty() {
			return nil, NewDecodingError("trailing data in pollRep entry")
		}
		rep.Entries = append(rep.Entries, e)
	}
	return rep, nil
}

func parseCertificate(s *cryptobyte.String) (*x509.Certificate, error) {
	var der cryptobyte.String
	if !s.ReadASN1Element(&der, cbasn1.SEQUENCE) {
		return nil, NewDecodingError("malformed certificate")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, WrapDecodingError(err, "failed to parse certificate")
	}
	return cert, nil
}

// parseCertificateSequence parses a SEQUENCE OF CMPCertificate occupying all of s.
func parseCertificateSequence(s cryptobyte.String) ([]*x509.Certificate, error) {
	var seq cryptobyte.String
	if !s.ReadASN1(&seq, cbasn1.SEQUENCE) || !s.Empty() {
		return nil, NewDecodingError("malformed certificate sequence")
	}
	var certs []*x509.Certificate
	for i := 0; !seq.Empty(); i++ {
		cert, err := parseCertificate(&seq)
		if err != nil {
			return nil, WrapDecodingError(err, fmt.Sprintf("certificate %d", i))
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

func parseAlgorithmIdentifier(s *cryptobyte.String) (pkix.AlgorithmIdentifier, error) {
	var (
		alg pkix.AlgorithmIdentifier
		der cryptobyte.String
	)
	if !s.ReadASN1Element(&der, cbasn1.SEQUENCE) {
		return alg, NewDecodingError("malformed algorithm identifier")
	}
	rest, err := asn1.Unmarshal(der, &alg)
	if err != nil {
		return alg, WrapDecodingError(err, "failed to parse algorithm identifier")
	}
	if len(rest) != 0 {
		return alg, NewDecodingError("trailing data after algorithm identifier")
	}
	return alg, nil
}

func parseFreeText(s *cryptobyte.String) ([]string, error) {
	var seq cryptobyte.String
	if !s.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return nil, NewDecodingError("malformed PKIFreeText")
	}
	text := []string{}
	for !seq.Empty() {
		var v cryptobyte.String
		if !seq.ReadASN1(&v, cbasn1.UTF8String) {
			return nil, NewDecodingError("PKIFreeText entry is not a UTF8String")
		}
		text = append(text, string(v))
	}
	return text, nil
}
