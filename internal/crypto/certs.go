package crypto

// certs.go - loading certificate bundles and CRLs from PEM or DER files

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// ParseCertificateChain parses one or more X.509 certificates from PEM-encoded data.
// The certificates are returned in the order they appear in the PEM data.
// Non-certificate blocks are skipped. Input without any PEM block is parsed as a single
// DER certificate.
func ParseCertificateChain(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	var block *pem.Block
	remaining := data
	sawPEM := false

	for {
		block, remaining = pem.Decode(remaining)
		if block == nil {
			break
		}
		sawPEM = true

		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, WrapCertificateError(err, "failed to parse certificate")
		}

		certs = append(certs, cert)
	}

	if !sawPEM && len(data) > 0 {
		cert, err := x509.ParseCertificate(data)
		if err != nil {
			return nil, WrapCertificateError(err, "failed to parse DER certificate")
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, NewValidationError("no certificates found in PEM data")
	}

	return certs, nil
}

// ParseCRLs parses one or more CRLs ("X509 CRL" PEM blocks, or a single DER CRL).
// Each CRL is returned as parsed; signatures are checked during path validation.
func ParseCRLs(data []byte) ([]*x509.RevocationList, error) {
	var crls []*x509.RevocationList
	var block *pem.Block
	remaining := data
	sawPEM := false

	for {
		block, remaining = pem.Decode(remaining)
		if block == nil {
			break
		}
		sawPEM = true

		if block.Type != "X509 CRL" {
			continue
		}

		crl, err := x509.ParseRevocationList(block.Bytes)
		if err != nil {
			return nil, WrapCertificateError(err, "failed to parse CRL")
		}
		crls = append(crls, crl)
	}

	if !sawPEM && len(data) > 0 {
		crl, err := x509.ParseRevocationList(data)
		if err != nil {
			return nil, WrapCertificateError(err, "failed to parse DER CRL")
		}
		crls = append(crls, crl)
	}

	if len(crls) == 0 {
		return nil, NewValidationError("no CRLs found in PEM data")
	}
	return crls, nil
}

// ReadCertChainFromPEMFile loads the certificates in a PEM (or DER) file, in file order.
//
// Parameters:
//   - path: The file path (e.g., "./certs/ca-bundle.pem")
func ReadCertChainFromPEMFile(path string) ([]*x509.Certificate, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	certs, err := ParseCertificateChain(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return certs, nil
}

// ReadCRLsFromPEMFile loads the CRLs in a PEM (or DER) file.
func ReadCRLsFromPEMFile(path string) ([]*x509.RevocationList, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	crls, err := ParseCRLs(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return crls, nil
}

// readFile reads path without following it out of its directory.
func readFile(path string) ([]byte, error) {
	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, WrapInternalError(err, fmt.Sprintf("failed to open directory %s", dir))
	}
	defer root.Close()

	data, err := root.ReadFile(filename)
	if err != nil {
		return nil, WrapInternalError(err, fmt.Sprintf("failed to read %s", path))
	}
	return data, nil
}
