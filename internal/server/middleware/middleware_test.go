package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRequestSizeLimit(t *testing.T) {
	const limit = 64

	router := chi.NewRouter()
	router.With(RequestSizeLimit(limit)).Post("/validate", func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name          string
		bodySize      int
		contentLength int64
		wantCode      int
	}{
		{"at the limit", limit, limit, http.StatusOK},
		{"announced too large", 2 * limit, 2 * limit, http.StatusRequestEntityTooLarge},
		{"unannounced too large", 2 * limit, -1, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewReader(make([]byte, tt.bodySize)))
			req.ContentLength = tt.contentLength

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rr.Code, tt.wantCode)
			}
			if header := rr.Header().Get("X-Max-Request-Size"); header != "64" {
				t.Errorf("expected X-Max-Request-Size 64, got %q", header)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name          string
		rps           int32
		expectLimited bool
	}{
		{"enabled", 10, true},
		{"disabled with 0", 0, false},
		{"disabled with negative", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := chi.NewRouter()
			router.Use(RateLimit(tt.rps, 1))
			router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			for i := range 2 {
				rr := httptest.NewRecorder()
				router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

				want := http.StatusOK
				if tt.expectLimited && i == 1 {
					want = http.StatusTooManyRequests
				}
				if rr.Code != want {
					t.Errorf("request %d: got status %d, want %d", i+1, rr.Code, want)
				}
			}
		})
	}
}

func TestRequireContentType(t *testing.T) {
	router := chi.NewRouter()
	router.With(RequireContentType("application/pkixcmp")).Post("/validate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		contentType string
		wantCode    int
	}{
		{"application/pkixcmp", http.StatusOK},
		{"application/pkixcmp; charset=binary", http.StatusOK},
		{"application/json", http.StatusBadRequest},
		{"", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/validate", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	for _, env := range []string{"dev", "prod"} {
		t.Run(env, func(t *testing.T) {
			router := chi.NewRouter()
			router.Use(SecurityHeaders(env))
			router.Get("/", func(w http.ResponseWriter, r *http.Request) {})

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Errorf("expected nosniff header")
			}
			hsts := rr.Header().Get("Strict-Transport-Security")
			if (env == "prod") != (hsts != "") {
				t.Errorf("unexpected HSTS header %q in %s", hsts, env)
			}
		})
	}
}
