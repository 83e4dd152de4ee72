package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/cmp-trust/internal/api"
	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/config"
	"github.com/information-sharing-networks/cmp-trust/internal/validation"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <message.der>...",
	Short: "Validate the protection of CMP messages",
	Long: `Validate the MAC or signature protection of one or more DER encoded PKIMessages.

The messages are validated in order against one validation context, so later messages of a
transaction (e.g. a pkiconf without extraCerts) can rely on the sender certificate validated by
earlier ones. Use - to read a single message from stdin.

The trust material is either given with flags or taken from a profile of a profiles file.

Examples:
  cmp-trust validate --trusted certs/root.pem ip.der pkiconf.der
  cmp-trust validate --secret-env CA_SECRET ip.der
  cmp-trust validate --profiles profiles.toml --profile example-ca --json ip.der`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

type validateOptions struct {
	profilesPath  string
	profileName   string
	trusted       []string
	untrusted     []string
	crls          []string
	secret        string
	secretEnv     string
	pinned        string
	permitTA      bool
	allowCertSign bool
	checkTime     string
	noCheckTime   bool
	maxCandidates int
	jsonOutput    bool
}

var validateOpts validateOptions

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateOpts.profilesPath, "profiles", "", "TOML profiles file")
	f.StringVar(&validateOpts.profileName, "profile", "", "profile to use from --profiles")
	f.StringSliceVar(&validateOpts.trusted, "trusted", nil, "PEM file(s) with trust anchors")
	f.StringSliceVar(&validateOpts.untrusted, "untrusted", nil, "PEM file(s) with intermediate or sender certificates")
	f.StringSliceVar(&validateOpts.crls, "crls", nil, "PEM file(s) with CRLs")
	f.StringVar(&validateOpts.secret, "secret", "", "shared secret for MAC protected messages")
	f.StringVar(&validateOpts.secretEnv, "secret-env", "", "environment variable holding the shared secret")
	f.StringVar(&validateOpts.pinned, "pinned", "", "PEM file with the expected sender certificate")
	f.BoolVar(&validateOpts.permitTA, "permit-ta-in-extra-certs-for-ip", false, "accept self-signed extraCerts as trust anchors for ip messages")
	f.BoolVar(&validateOpts.allowCertSign, "allow-cert-sign-key-usage", false, "accept sender certificates with keyCertSign but without digitalSignature")
	f.StringVar(&validateOpts.checkTime, "check-time", "", "validate certificates at this RFC 3339 time instead of now")
	f.BoolVar(&validateOpts.noCheckTime, "no-check-time", false, "do not check certificate validity periods")
	f.IntVar(&validateOpts.maxCandidates, "max-candidates", 0, "maximum candidate sender certificates per message (0 = default)")
	f.BoolVar(&validateOpts.jsonOutput, "json", false, "print one JSON report per message")
}

func runValidate(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile(validateOpts)
	if err != nil {
		return err
	}

	rejected, err := validateMessages(cmd.OutOrStdout(), cmd.InOrStdin(), profile, args, validateOpts.jsonOutput, appLogger)
	if err != nil {
		return err
	}
	if rejected > 0 {
		return fmt.Errorf("%d of %d messages rejected", rejected, len(args))
	}
	return nil
}

// loadProfile returns the profile named by --profiles/--profile, or one built from the trust flags.
func loadProfile(opts validateOptions) (*config.Profile, error) {
	if opts.profilesPath != "" {
		if len(opts.trusted) > 0 || len(opts.untrusted) > 0 || len(opts.crls) > 0 ||
			opts.secret != "" || opts.secretEnv != "" || opts.pinned != "" {
			return nil, fmt.Errorf("--profiles cannot be combined with trust material flags")
		}
		if opts.profileName == "" {
			return nil, fmt.Errorf("--profile is required with --profiles")
		}
		profiles, err := config.LoadProfiles(opts.profilesPath)
		if err != nil {
			return nil, err
		}
		p, ok := profiles[opts.profileName]
		if !ok {
			return nil, fmt.Errorf("profile %q not found in %s", opts.profileName, opts.profilesPath)
		}
		return p, nil
	}

	pc := &config.ProfileConfig{
		TrustedCerts:              opts.trusted,
		UntrustedCerts:            opts.untrusted,
		CRLs:                      opts.crls,
		SharedSecret:              opts.secret,
		SharedSecretEnv:           opts.secretEnv,
		PinnedCert:                opts.pinned,
		PermitTAInExtraCertsForIP: opts.permitTA,
		AllowCertSignKeyUsage:     opts.allowCertSign,
		NoCheckTime:               opts.noCheckTime,
		MaxCandidates:             opts.maxCandidates,
	}
	if opts.checkTime != "" {
		t, err := time.Parse(time.RFC3339, opts.checkTime)
		if err != nil {
			return nil, fmt.Errorf("invalid --check-time: %w", err)
		}
		pc.CheckTime = t
	}
	return config.NewProfile("command-line", pc, "")
}

// messageReport is the JSON report of one validated message.
type messageReport struct {
	File     string                  `json:"file"`
	Accepted bool                    `json:"accepted"`
	Code     string                  `json:"code,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Result   *api.ValidationResponse `json:"result,omitempty"`
}

// validateMessages validates the messages at paths in order with one context and writes a report
// line per message to w. It returns the number of rejected messages; err is only set when a
// file cannot be read or the report cannot be written.
func validateMessages(w io.Writer, stdin io.Reader, profile *config.Profile, paths []string, jsonOutput bool, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := profile.NewContext(logger)
	enc := json.NewEncoder(w)
	rejected := 0

	for _, path := range paths {
		der, err := readMessage(path, stdin)
		if err != nil {
			return rejected, err
		}

		report := messageReport{File: path}
		msg, err := cmp.Decode(der)
		if err == nil {
			var result *validation.Result
			result, err = validation.ValidateMessage(ctx, msg)
			if err == nil {
				bodyType := msg.BodyType()
				closed := bodyType == cmp.BodyPKIConf || bodyType == cmp.BodyError
				if closed {
					ctx.Reset()
				}
				report.Accepted = true
				report.Result = api.NewValidationResponse(profile.Name, msg, result, closed)
			}
		}
		if err != nil {
			rejected++
			report.Error = err.Error()
			report.Code = string(validation.CodeOf(err))
			if report.Code == "" {
				report.Code = "DECODE"
			}
		}

		if jsonOutput {
			err = enc.Encode(report)
		} else {
			err = writeReportLine(w, report)
		}
		if err != nil {
			return rejected, fmt.Errorf("failed to write report: %w", err)
		}
	}
	return rejected, nil
}

func writeReportLine(w io.Writer, r messageReport) error {
	if !r.Accepted {
		_, err := fmt.Fprintf(w, "%s: rejected (%s) %s\n", r.File, r.Code, r.Error)
		return err
	}
	res := r.Result
	line := fmt.Sprintf("%s: accepted %s %s protection", r.File, res.BodyType, res.Protection)
	if res.SenderCertificate != nil {
		line += fmt.Sprintf(", sender %q from %s", res.SenderCertificate.Subject, res.CertificateSource)
	}
	if res.TrustAnchorRecovered {
		line += ", trust anchor recovered from extraCerts"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func readMessage(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		der, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read message from stdin: %w", err)
		}
		return der, nil
	}
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return der, nil
}
