package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/information-sharing-networks/cmp-trust/internal/testutil"
)

func TestReadCertChainFromPEMFile(t *testing.T) {
	root := testutil.NewRootCA(t, "Root CA")
	leaf := testutil.NewLeaf(t, root, "server")

	certs, err := ReadCertChainFromPEMFile(testutil.WritePEM(t, "chain.pem", leaf.Cert, root.Cert))
	if err != nil {
		t.Fatalf("ReadCertChainFromPEMFile failed: %v", err)
	}
	if len(certs) != 2 || !certs[0].Equal(leaf.Cert) || !certs[1].Equal(root.Cert) {
		t.Errorf("certificates not returned in file order")
	}

	derPath := filepath.Join(t.TempDir(), "leaf.der")
	if err := os.WriteFile(derPath, leaf.Cert.Raw, 0o600); err != nil {
		t.Fatalf("failed to write DER file: %v", err)
	}
	certs, err = ReadCertChainFromPEMFile(derPath)
	if err != nil || len(certs) != 1 {
		t.Fatalf("expected one DER certificate, got %d (%v)", len(certs), err)
	}

	if _, err := ReadCertChainFromPEMFile(filepath.Join(t.TempDir(), "missing.pem")); CodeOf(err) != ErrCodeInternal {
		t.Errorf("expected internal error for missing file, got %v", err)
	}

	crlPath := testutil.WriteCRLPEM(t, "ca.crl", testutil.NewCRL(t, root, leaf.Cert))
	if _, err := ReadCertChainFromPEMFile(crlPath); CodeOf(err) != ErrCodeValidation {
		t.Errorf("expected validation error for a file without certificates, got %v", err)
	}
}

func TestReadCRLsFromPEMFile(t *testing.T) {
	root := testutil.NewRootCA(t, "Root CA")
	leaf := testutil.NewLeaf(t, root, "server")

	crls, err := ReadCRLsFromPEMFile(testutil.WriteCRLPEM(t, "ca.crl", testutil.NewCRL(t, root, leaf.Cert)))
	if err != nil {
		t.Fatalf("ReadCRLsFromPEMFile failed: %v", err)
	}
	if len(crls) != 1 || len(crls[0].RevokedCertificateEntries) != 1 {
		t.Errorf("unexpected CRLs %+v", crls)
	}
}

func TestLoadTrustStore(t *testing.T) {
	root := testutil.NewRootCA(t, "Root CA")
	other := testutil.NewRootCA(t, "Other CA")

	store, err := LoadTrustStore([]string{
		testutil.WritePEM(t, "a.pem", root.Cert),
		testutil.WritePEM(t, "b.pem", other.Cert, root.Cert),
	}, VerifyParams{NoCheckTime: true})
	if err != nil {
		t.Fatalf("LoadTrustStore failed: %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 distinct trust anchors, got %d", store.Len())
	}
	if !store.Params().NoCheckTime {
		t.Errorf("verify parameters not applied")
	}
}
