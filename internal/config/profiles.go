package config

// profiles.go loads the trust profiles: one profile per peer CA describing how the messages of
// that CA are authenticated.
//
// Example:
//
//	[profiles.example-ca]
//	trusted_certs = ["certs/example-root.pem"]
//	untrusted_certs = ["certs/example-intermediates.pem"]
//	crls = ["crls/example-root.crl.pem"]
//	shared_secret_env = "EXAMPLE_CA_SECRET"
//	permit_ta_in_extra_certs_for_ip = false
//	allow_cert_sign_key_usage = false
//
// Relative paths are resolved against the directory of the profiles file.

import (
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/information-sharing-networks/cmp-trust/internal/crypto"
	"github.com/information-sharing-networks/cmp-trust/internal/validation"
)

// ProfileConfig is one [profiles.<name>] table of the profiles file.
type ProfileConfig struct {
	TrustedCerts   []string `toml:"trusted_certs"`
	UntrustedCerts []string `toml:"untrusted_certs"`
	CRLs           []string `toml:"crls"`

	// SharedSecret is used for MAC protected messages. SharedSecretEnv names an environment
	// variable holding the secret instead; only one of the two may be set.
	SharedSecret    string `toml:"shared_secret"`
	SharedSecretEnv string `toml:"shared_secret_env"`

	PinnedCert string `toml:"pinned_cert"`

	PermitTAInExtraCertsForIP bool `toml:"permit_ta_in_extra_certs_for_ip"`
	AllowCertSignKeyUsage     bool `toml:"allow_cert_sign_key_usage"`

	// CheckTime pins the time certificates are validated at; NoCheckTime disables time checks
	CheckTime   time.Time `toml:"check_time"`
	NoCheckTime bool      `toml:"no_check_time"`

	MaxCandidates int `toml:"max_candidates"`
}

type profilesFile struct {
	Profiles map[string]*ProfileConfig `toml:"profiles"`
}

// Profile is a loaded trust profile: certificates, CRLs and secrets read from disk.
type Profile struct {
	Name                      string
	Trusted                   *crypto.TrustStore
	Untrusted                 []*x509.Certificate
	CRLs                      []*x509.RevocationList
	SharedSecret              []byte
	PinnedCert                *x509.Certificate
	PermitTAInExtraCertsForIR bool
	AllowCertSignKeyUsage     bool
	MaxCandidates             int
}

// NewContext returns a fresh validation context for one transaction with this profile.
func (p *Profile) NewContext(logger *slog.Logger) *validation.Context {
	return &validation.Context{
		Trusted:                   p.Trusted,
		Untrusted:                 p.Untrusted,
		CRLs:                      p.CRLs,
		SharedSecret:              p.SharedSecret,
		PinnedCert:                p.PinnedCert,
		PermitTAInExtraCertsForIR: p.PermitTAInExtraCertsForIR,
		AllowCertSignKeyUsage:     p.AllowCertSignKeyUsage,
		MaxCandidates:             p.MaxCandidates,
		Logger:                    logger.With(slog.String("profile", p.Name)),
	}
}

// LoadProfiles reads the profiles file at path and loads every profile in it.
func LoadProfiles(path string) (map[string]*Profile, error) {
	var file profilesFile
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode profiles file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in profiles file %s: %s", path, strings.Join(keys, ", "))
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("profiles file %s defines no profiles", path)
	}

	baseDir := filepath.Dir(path)
	names := make([]string, 0, len(file.Profiles))
	for name := range file.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make(map[string]*Profile, len(names))
	for _, name := range names {
		p, err := NewProfile(name, file.Profiles[name], baseDir)
		if err != nil {
			return nil, err
		}
		profiles[name] = p
	}
	return profiles, nil
}

// NewProfile validates pc and loads the files it references. Relative paths are resolved against baseDir.
func NewProfile(name string, pc *ProfileConfig, baseDir string) (*Profile, error) {
	if err := validateProfile(name, pc); err != nil {
		return nil, err
	}
	resolve := func(paths []string) []string {
		out := make([]string, len(paths))
		for i, p := range paths {
			out[i] = resolvePath(baseDir, p)
		}
		return out
	}

	params := crypto.VerifyParams{CheckTime: pc.CheckTime, NoCheckTime: pc.NoCheckTime}
	trusted, err := crypto.LoadTrustStore(resolve(pc.TrustedCerts), params)
	if err != nil {
		return nil, fmt.Errorf("profile %s: failed to load trusted certificates: %w", name, err)
	}

	p := &Profile{
		Name:                      name,
		Trusted:                   trusted,
		PermitTAInExtraCertsForIR: pc.PermitTAInExtraCertsForIP,
		AllowCertSignKeyUsage:     pc.AllowCertSignKeyUsage,
		MaxCandidates:             pc.MaxCandidates,
	}

	for _, path := range resolve(pc.UntrustedCerts) {
		certs, err := crypto.ReadCertChainFromPEMFile(path)
		if err != nil {
			return nil, fmt.Errorf("profile %s: failed to load untrusted certificates: %w", name, err)
		}
		p.Untrusted = append(p.Untrusted, certs...)
	}

	for _, path := range resolve(pc.CRLs) {
		crls, err := crypto.ReadCRLsFromPEMFile(path)
		if err != nil {
			return nil, fmt.Errorf("profile %s: failed to load CRLs: %w", name, err)
		}
		p.CRLs = append(p.CRLs, crls...)
	}

	if pc.PinnedCert != "" {
		certs, err := crypto.ReadCertChainFromPEMFile(resolvePath(baseDir, pc.PinnedCert))
		if err != nil {
			return nil, fmt.Errorf("profile %s: failed to load pinned certificate: %w", name, err)
		}
		p.PinnedCert = certs[0]
	}

	switch {
	case pc.SharedSecret != "":
		p.SharedSecret = []byte(pc.SharedSecret)
	case pc.SharedSecretEnv != "":
		secret := os.Getenv(pc.SharedSecretEnv)
		if secret == "" {
			return nil, fmt.Errorf("profile %s: environment variable %s is not set", name, pc.SharedSecretEnv)
		}
		p.SharedSecret = []byte(secret)
	}

	return p, nil
}

func validateProfile(name string, pc *ProfileConfig) error {
	if name == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	if pc == nil {
		return fmt.Errorf("profile %s is empty", name)
	}
	if pc.SharedSecret != "" && pc.SharedSecretEnv != "" {
		return fmt.Errorf("profile %s: shared_secret and shared_secret_env are mutually exclusive", name)
	}
	if !pc.CheckTime.IsZero() && pc.NoCheckTime {
		return fmt.Errorf("profile %s: check_time and no_check_time are mutually exclusive", name)
	}
	if pc.MaxCandidates < 0 {
		return fmt.Errorf("profile %s: max_candidates must be 0 or greater", name)
	}
	if len(pc.TrustedCerts) == 0 && pc.PinnedCert == "" && pc.SharedSecret == "" &&
		pc.SharedSecretEnv == "" && !pc.PermitTAInExtraCertsForIP {
		return fmt.Errorf("profile %s: no way to authenticate messages (set trusted_certs, pinned_cert or a shared secret)", name)
	}
	return nil
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
