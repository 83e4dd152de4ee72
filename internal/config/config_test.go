package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewServerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("PROFILES_PATH", "/etc/cmp-trust/profiles.toml")

		cfg, err := NewServerConfig()
		if err != nil {
			t.Fatalf("NewServerConfig failed: %v", err)
		}
		if cfg.Environment != "dev" || cfg.Port != 8080 || cfg.Host != "0.0.0.0" {
			t.Errorf("unexpected defaults %+v", cfg)
		}
		if cfg.ServerShutdownTimeout != 10*time.Second {
			t.Errorf("expected 10s shutdown timeout, got %v", cfg.ServerShutdownTimeout)
		}
		if cfg.MaxRequestSize != 1048576 || cfg.TransactionCacheSize != 1024 {
			t.Errorf("unexpected limits %+v", cfg)
		}
		if cfg.ProfilesPath != "/etc/cmp-trust/profiles.toml" {
			t.Errorf("unexpected profiles path %q", cfg.ProfilesPath)
		}
	})

	t.Run("missing PROFILES_PATH", func(t *testing.T) {
		t.Setenv("PROFILES_PATH", "")
		os.Unsetenv("PROFILES_PATH")
		if _, err := NewServerConfig(); err == nil {
			t.Fatal("expected an error without PROFILES_PATH")
		}
	})

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"invalid port", map[string]string{"PORT": "70000"}, "PORT"},
		{"invalid environment", map[string]string{"ENVIRONMENT": "qa"}, "ENVIRONMENT"},
		{"zero request size", map[string]string{"MAX_REQUEST_SIZE": "0"}, "MAX_REQUEST_SIZE"},
		{"zero cache size", map[string]string{"TRANSACTION_CACHE_SIZE": "0"}, "TRANSACTION_CACHE_SIZE"},
		{"rate limit without burst", map[string]string{"RATE_LIMIT_RPS": "10", "RATE_LIMIT_BURST": "0"}, "RATE_LIMIT_BURST"},
		{"log file with zero size", map[string]string{"LOG_FILE": "/tmp/x.log", "LOG_FILE_MAX_SIZE_MB": "0"}, "LOG_FILE_MAX_SIZE_MB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROFILES_PATH", "profiles.toml")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewServerConfig()
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewCLIConfig(t *testing.T) {
	cfg, err := NewCLIConfig()
	if err != nil {
		t.Fatalf("NewCLIConfig failed: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}

	t.Setenv("ENVIRONMENT", "nowhere")
	if _, err := NewCLIConfig(); err == nil {
		t.Errorf("expected an error for an invalid environment")
	}
}
