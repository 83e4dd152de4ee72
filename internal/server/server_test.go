package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/information-sharing-networks/cmp-trust/internal/api"
	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/config"
	"github.com/information-sharing-networks/cmp-trust/internal/crypto"
	"github.com/information-sharing-networks/cmp-trust/internal/testutil"
	"github.com/information-sharing-networks/cmp-trust/internal/testutil/cmptest"
)

var testSecret = []byte("server-test-secret")

type testEnv struct {
	server   *Server
	registry metrics.Registry
	root     *testutil.Identity
	caServer *testutil.Identity
	client   *testutil.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := testutil.NewRootCA(t, "Server Test Root CA")
	caServer := testutil.NewLeaf(t, root, "ca-server.example.com")
	client := testutil.NewLeaf(t, root, "client.example.com")

	profiles := map[string]*config.Profile{
		"signed": {
			Name:    "signed",
			Trusted: crypto.NewTrustStore(root.Cert),
		},
		"mac": {
			Name:         "mac",
			Trusted:      crypto.NewTrustStore(),
			SharedSecret: testSecret,
		},
	}
	cfg := &config.ServerEnvironment{
		Environment:          "test",
		MaxRequestSize:       1 << 20,
		TransactionCacheSize: 16,
	}
	registry := metrics.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server, err := NewServer(cfg, profiles, registry, logger)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return &testEnv{server: server, registry: registry, root: root, caServer: caServer, client: client}
}

func (e *testEnv) post(t *testing.T, profile string, msg *cmp.Message) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/profiles/"+profile+"/validate", bytes.NewReader(cmptest.Marshal(t, msg)))
	req.Header.Set("Content-Type", MediaTypePKIXCMP)
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeValidation(t *testing.T, rr *httptest.ResponseRecorder) api.ValidationResponse {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp api.ValidationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func expectRejection(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int, wantValue string) {
	t.Helper()
	if rr.Code != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, rr.Code, rr.Body.String())
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one detailed error, got %d", len(resp.Errors))
	}
	if resp.Errors[0].Value != wantValue {
		t.Errorf("expected validation code %q, got %q", wantValue, resp.Errors[0].Value)
	}
}

func TestServer_InfrastructureRoutes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/health/live", http.StatusOK},
		{"/ready", http.StatusOK},
		{"/version", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/nowhere", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rr.Code, tt.wantCode)
			}
			if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Errorf("expected security headers on %s", tt.path)
			}
		})
	}
}

func TestServer_RequestErrors(t *testing.T) {
	env := newTestEnv(t)
	valid := cmptest.Marshal(t, cmptest.MACProtected(t, testSecret, cmptest.PKIConf()))

	tests := []struct {
		name        string
		path        string
		contentType string
		body        []byte
		wantCode    int
		wantError   api.ErrorCode
	}{
		{"unknown profile", "/v1/profiles/nobody/validate", MediaTypePKIXCMP, valid, http.StatusNotFound, api.ErrCodeUnknownProfile},
		{"wrong media type", "/v1/profiles/mac/validate", "application/json", valid, http.StatusBadRequest, api.ErrCodeMalformedRequest},
		{"empty body", "/v1/profiles/mac/validate", MediaTypePKIXCMP, nil, http.StatusBadRequest, api.ErrCodeMalformedRequest},
		{"not DER", "/v1/profiles/mac/validate", MediaTypePKIXCMP, []byte("hello"), http.StatusBadRequest, api.ErrCodeMalformedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("got status %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			var resp api.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if len(resp.Errors) != 1 || resp.Errors[0].ErrorCode != tt.wantError {
				t.Errorf("expected error code %d, got %+v", tt.wantError, resp.Errors)
			}
		})
	}
}

func TestServer_MACProfile(t *testing.T) {
	env := newTestEnv(t)

	resp := decodeValidation(t, env.post(t, "mac", cmptest.MACProtected(t, testSecret, cmptest.PKIConf())))
	if resp.Protection != crypto.ProtectionMAC.String() || resp.SenderCertificate != nil {
		t.Errorf("unexpected response %+v", resp)
	}
	if !resp.TransactionClosed {
		t.Errorf("expected a pkiconf to close the transaction")
	}

	expectRejection(t, env.post(t, "mac", cmptest.MACProtected(t, []byte("wrong"), cmptest.PKIConf())),
		http.StatusUnprocessableEntity, "BMAC")
	expectRejection(t, env.post(t, "mac", cmptest.Unprotected(t, cmptest.PKIConf())),
		http.StatusUnprocessableEntity, "UNPR")

	if got := metrics.GetOrRegisterCounter("validation.accepted", env.registry).Count(); got != 1 {
		t.Errorf("expected 1 accepted message, got %d", got)
	}
	if got := metrics.GetOrRegisterCounter("validation.rejected.BMAC", env.registry).Count(); got != 1 {
		t.Errorf("expected 1 BMAC rejection, got %d", got)
	}
}

func TestServer_SignedTransaction(t *testing.T) {
	env := newTestEnv(t)
	txID := []byte("transaction-0001")

	// the ip carries the sender certificate, the pkiconf relies on the cached one
	ip := cmptest.Signed(t, env.caServer, cmptest.IP(env.client.Cert),
		cmptest.WithTransactionID(txID), cmptest.WithExtraCerts(env.caServer.Cert))
	resp := decodeValidation(t, env.post(t, "signed", ip))
	if resp.CertificateSource != "extraCerts" || resp.TransactionClosed {
		t.Errorf("unexpected ip response %+v", resp)
	}
	if resp.SenderCertificate == nil || resp.SenderCertificate.Subject != env.caServer.Cert.Subject.String() {
		t.Errorf("expected the CA server certificate in the response, got %+v", resp.SenderCertificate)
	}
	if resp.BodyType != "ip" || resp.Profile != "signed" {
		t.Errorf("unexpected body type or profile %+v", resp)
	}

	conf := cmptest.Signed(t, env.caServer, cmptest.PKIConf(), cmptest.WithTransactionID(txID))
	resp = decodeValidation(t, env.post(t, "signed", conf))
	if resp.CertificateSource != "cached" || !resp.TransactionClosed {
		t.Errorf("unexpected pkiconf response %+v", resp)
	}
	if env.server.transactions.len() != 0 {
		t.Errorf("expected no open transactions, got %d", env.server.transactions.len())
	}

	// the transaction is closed so the sender certificate is no longer known
	expectRejection(t, env.post(t, "signed", conf), http.StatusUnprocessableEntity, "NVSC")
}

func TestServer_RejectedMessagesKeepTransactionOpen(t *testing.T) {
	tests := []struct {
		name      string
		msg       func(t *testing.T, txID []byte) *cmp.Message
		wantValue string
	}{
		{
			name: "unprotected pkiconf",
			msg: func(t *testing.T, txID []byte) *cmp.Message {
				t.Helper()
				return cmptest.Unprotected(t, cmptest.PKIConf(), cmptest.WithTransactionID(txID))
			},
			wantValue: "UNPR",
		},
		{
			name: "pkiconf signed by an impostor with the CA server's name",
			msg: func(t *testing.T, txID []byte) *cmp.Message {
				t.Helper()
				impostor := testutil.NewSelfSignedLeaf(t, "ca-server.example.com")
				return cmptest.Signed(t, impostor, cmptest.PKIConf(), cmptest.WithTransactionID(txID))
			},
			wantValue: "NVSC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			txID := []byte("transaction-0003")

			ip := cmptest.Signed(t, env.caServer, cmptest.IP(env.client.Cert),
				cmptest.WithTransactionID(txID), cmptest.WithExtraCerts(env.caServer.Cert))
			decodeValidation(t, env.post(t, "signed", ip))

			expectRejection(t, env.post(t, "signed", tt.msg(t, txID)), http.StatusUnprocessableEntity, tt.wantValue)
			if env.server.transactions.len() != 1 {
				t.Fatalf("expected the transaction to stay open, got %d open transactions", env.server.transactions.len())
			}

			conf := cmptest.Signed(t, env.caServer, cmptest.PKIConf(), cmptest.WithTransactionID(txID))
			resp := decodeValidation(t, env.post(t, "signed", conf))
			if resp.CertificateSource != "cached" || !resp.TransactionClosed {
				t.Errorf("unexpected pkiconf response %+v", resp)
			}
		})
	}
}

func TestServer_TransactionsAreSeparatedByProfile(t *testing.T) {
	env := newTestEnv(t)
	txID := []byte("transaction-0002")

	ip := cmptest.Signed(t, env.caServer, cmptest.IP(env.client.Cert),
		cmptest.WithTransactionID(txID), cmptest.WithExtraCerts(env.caServer.Cert))
	decodeValidation(t, env.post(t, "signed", ip))

	// same transactionID under another profile has no cached sender certificate
	conf := cmptest.Signed(t, env.caServer, cmptest.PKIConf(), cmptest.WithTransactionID(txID))
	expectRejection(t, env.post(t, "mac", conf), http.StatusUnprocessableEntity, "NTRC")
}
