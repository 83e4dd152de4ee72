package api

import (
	"crypto/x509"
	"encoding/hex"
	"time"

	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/validation"
)

// ValidationResponse is returned for an accepted message.
type ValidationResponse struct {

	// Profile is the trust profile the message was validated with
	Profile string `json:"profile" example:"example-ca"`

	// TransactionID is the CMP transactionID (UUID form when 16 bytes long)
	TransactionID string `json:"transactionId" example:"9a1e3c2e-5f44-4b7b-8d2a-8f6a1b0c4d11"`

	// BodyType is the PKIBody variant of the message, e.g. ip or pkiconf
	BodyType string `json:"bodyType" example:"ip"`

	// Protection is MAC or signature
	Protection string `json:"protection" example:"signature"`

	// SenderCertificate describes the certificate that verified the signature (omitted for MAC protection)
	SenderCertificate *CertificateInfo `json:"senderCertificate,omitempty"`

	// CertificateSource says where the sender certificate was found: pinned, cached, trusted, untrusted or extraCerts
	CertificateSource string `json:"certificateSource,omitempty" example:"extraCerts"`

	// TrustAnchorRecovered is true when the sender was trusted through a root shipped in extraCerts
	TrustAnchorRecovered bool `json:"trustAnchorRecovered"`

	// TransactionClosed is true when the message ended the transaction and its cached state was dropped
	TransactionClosed bool `json:"transactionClosed"`
}

// CertificateInfo summarises a certificate.
type CertificateInfo struct {
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serialNumber"`
	NotBefore    time.Time `json:"notBefore"`
	NotAfter     time.Time `json:"notAfter"`
	SubjectKeyID string    `json:"subjectKeyId,omitempty"`
}

// NewCertificateInfo summarises cert; it returns nil for a nil certificate.
func NewCertificateInfo(cert *x509.Certificate) *CertificateInfo {
	if cert == nil {
		return nil
	}
	return &CertificateInfo{
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		SerialNumber: cert.SerialNumber.String(),
		NotBefore:    cert.NotBefore.UTC(),
		NotAfter:     cert.NotAfter.UTC(),
		SubjectKeyID: hex.EncodeToString(cert.SubjectKeyId),
	}
}

// NewValidationResponse builds the response for an accepted message.
func NewValidationResponse(profile string, msg *cmp.Message, result *validation.Result, closed bool) *ValidationResponse {
	return &ValidationResponse{
		Profile:              profile,
		TransactionID:        msg.Header.TransactionIDString(),
		BodyType:             msg.BodyType().String(),
		Protection:           result.Method.String(),
		SenderCertificate:    NewCertificateInfo(result.SenderCert),
		CertificateSource:    string(result.Source),
		TrustAnchorRecovered: result.Recovered,
		TransactionClosed:    closed,
	}
}
