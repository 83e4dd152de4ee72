package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/cmp-trust/internal/api"
	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/crypto"
)

var inspectJSON bool

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <message.der>",
	Short: "Decode a CMP message and print a summary",
	Long: `Decode a DER encoded PKIMessage and print its header, body type, protection algorithm
and certificates. The protection is not checked, use validate for that.

Example:
  cmp-trust inspect ip.der`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		der, err := readMessage(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		msg, err := cmp.Decode(der)
		if err != nil {
			return err
		}
		summary := summarize(msg)
		if inspectJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		return summary.write(cmd.OutOrStdout())
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print as JSON")
}

type messageSummary struct {
	PVNO           int64                  `json:"pvno"`
	Sender         string                 `json:"sender"`
	Recipient      string                 `json:"recipient"`
	MessageTime    *time.Time             `json:"messageTime,omitempty"`
	TransactionID  string                 `json:"transactionId,omitempty"`
	SenderKID      string                 `json:"senderKid,omitempty"`
	BodyType       string                 `json:"bodyType"`
	Protected      bool                   `json:"protected"`
	ProtectionAlg  string                 `json:"protectionAlg,omitempty"`
	ProtectionKind string                 `json:"protectionKind,omitempty"`
	GeneralInfo    []string               `json:"generalInfo,omitempty"`
	FreeText       []string               `json:"freeText,omitempty"`
	ExtraCerts     []*api.CertificateInfo `json:"extraCerts,omitempty"`
	IssuedCert     *api.CertificateInfo   `json:"issuedCert,omitempty"`
}

func summarize(msg *cmp.Message) *messageSummary {
	h := &msg.Header
	s := &messageSummary{
		PVNO:      h.PVNO,
		Sender:    h.Sender.String(),
		Recipient: h.Recipient.String(),
		SenderKID: hex.EncodeToString(h.SenderKID),
		BodyType:  msg.BodyType().String(),
		Protected: msg.IsProtected(),
		FreeText:  h.FreeText,
	}
	if len(h.TransactionID) > 0 {
		s.TransactionID = h.TransactionIDString()
	}
	if !h.MessageTime.IsZero() {
		t := h.MessageTime.UTC()
		s.MessageTime = &t
	}
	if h.ProtectionAlg != nil {
		s.ProtectionAlg = h.ProtectionAlg.Algorithm.String()
		s.ProtectionKind = crypto.ClassifyProtection(*h.ProtectionAlg).String()
	}
	for _, itav := range h.GeneralInfo {
		s.GeneralInfo = append(s.GeneralInfo, itav.Type.String())
	}
	for _, cert := range msg.ExtraCerts {
		s.ExtraCerts = append(s.ExtraCerts, api.NewCertificateInfo(cert))
	}
	if rep, ok := msg.Body.(*cmp.CertRepMessage); ok {
		s.IssuedCert = api.NewCertificateInfo(rep.IssuedCertificate())
	}
	return s
}

func (s *messageSummary) write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "pvno:           %d\n", s.PVNO)
	fmt.Fprintf(&b, "sender:         %s\n", s.Sender)
	fmt.Fprintf(&b, "recipient:      %s\n", s.Recipient)
	if s.MessageTime != nil {
		fmt.Fprintf(&b, "messageTime:    %s\n", s.MessageTime.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "transactionID:  %s\n", s.TransactionID)
	if s.SenderKID != "" {
		fmt.Fprintf(&b, "senderKID:      %s\n", s.SenderKID)
	}
	fmt.Fprintf(&b, "body:           %s\n", s.BodyType)
	if s.Protected {
		fmt.Fprintf(&b, "protection:     %s (%s)\n", s.ProtectionKind, s.ProtectionAlg)
	} else {
		fmt.Fprintf(&b, "protection:     none\n")
	}
	for _, oid := range s.GeneralInfo {
		fmt.Fprintf(&b, "generalInfo:    %s\n", oid)
	}
	for _, c := range s.ExtraCerts {
		fmt.Fprintf(&b, "extraCert:      %s (issuer %s)\n", c.Subject, c.Issuer)
	}
	if s.IssuedCert != nil {
		fmt.Fprintf(&b, "issuedCert:     %s (issuer %s)\n", s.IssuedCert.Subject, s.IssuedCert.Issuer)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
