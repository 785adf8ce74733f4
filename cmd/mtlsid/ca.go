package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/mtls-identity/internal/audit"
	"github.com/remiblancher/mtls-identity/internal/ca"
	"github.com/remiblancher/mtls-identity/internal/x509util"
)

// CA command flags
var (
	caDir           string
	caCommonName    string
	caOrganization  string
	caCountry       string
	caValidityYears int
	caPassphraseEnv string
)

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Certificate Authority management",
	Long: `Manage the issuing Certificate Authority.

Commands:
  init    Initialize the CA (idempotent)
  info    Display CA information

Examples:
  # Create the CA (safe to re-run; an existing valid CA is kept)
  mtlsid ca init --dir ./ca --cn "Fleet Root CA" --passphrase-env CA_PASSPHRASE

  # Show CA information
  mtlsid ca info --dir ./ca`,
}

var caInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the Certificate Authority",
	Long: `Initialize the Certificate Authority.

Generates an ECDSA P-256 keypair and a self-signed CA certificate. The
private key is encrypted at rest with the passphrase read from the
environment variable named by --passphrase-env.

Idempotent: when a valid, non-expired CA already exists in the directory
it is reused instead of being overwritten.

The CA directory layout:
  {dir}/
    ├── ca.crt           # CA certificate (PEM)
    ├── private/
    │   └── ca.key       # CA private key (encrypted PEM)
    ├── certs/           # Issued certificates
    ├── index.txt        # Issuance log
    └── serial           # Serial number counter`,
	RunE: runCAInit,
}

var caInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display CA information",
	RunE:  runCAInfo,
}

func init() {
	caInitCmd.Flags().StringVar(&caDir, "dir", "", "CA directory (required)")
	caInitCmd.Flags().StringVar(&caCommonName, "cn", "", "CA common name (required)")
	caInitCmd.Flags().StringVar(&caOrganization, "org", "", "CA organization")
	caInitCmd.Flags().StringVar(&caCountry, "country", "", "CA country code")
	caInitCmd.Flags().IntVar(&caValidityYears, "validity-years", 0, "CA validity in years (default: 10)")
	caInitCmd.Flags().StringVar(&caPassphraseEnv, "passphrase-env", "", "Environment variable holding the key passphrase (required)")

	caInfoCmd.Flags().StringVar(&caDir, "dir", "", "CA directory (required)")

	caCmd.AddCommand(caInitCmd)
	caCmd.AddCommand(caInfoCmd)
	rootCmd.AddCommand(caCmd)
}

func runCAInit(cmd *cobra.Command, args []string) error {
	if caDir == "" {
		return fmt.Errorf("--dir is required")
	}
	if caCommonName == "" {
		return fmt.Errorf("--cn is required")
	}
	passphrase, err := passphraseFromEnv(caPassphraseEnv)
	if err != nil {
		return err
	}

	store := ca.NewStore(caDir)
	created := !store.Exists()
	authority, err := ca.InitializeAuthority(store, ca.Config{
		CommonName:    caCommonName,
		Organization:  caOrganization,
		Country:       caCountry,
		ValidityYears: caValidityYears,
		Passphrase:    passphrase,
	})
	if err != nil {
		return err
	}

	if created {
		if err := recordCACreated(caDir, authority); err != nil {
			return err
		}
	}

	cert := authority.Certificate()
	fmt.Printf("CA ready: %s\n", cert.Subject.String())
	fmt.Printf("  Fingerprint: %s\n", x509util.FingerprintHex(cert))
	fmt.Printf("  Expires:     %s\n", cert.NotAfter.Format(time.RFC3339))
	return nil
}

func runCAInfo(cmd *cobra.Command, args []string) error {
	if caDir == "" {
		return fmt.Errorf("--dir is required")
	}

	authority, err := ca.Load(ca.NewStore(caDir))
	if err != nil {
		return err
	}

	cert := authority.Certificate()
	fmt.Printf("Subject:     %s\n", cert.Subject.String())
	fmt.Printf("Serial:      0x%X\n", cert.SerialNumber.Bytes())
	fmt.Printf("Fingerprint: %s\n", x509util.FingerprintHex(cert))
	fmt.Printf("Not Before:  %s\n", cert.NotBefore.Format(time.RFC3339))
	fmt.Printf("Not After:   %s\n", cert.NotAfter.Format(time.RFC3339))
	return nil
}

// recordCACreated appends a creation event to the CA's audit log.
func recordCACreated(dir string, authority *ca.Authority) error {
	auditLog, err := audit.OpenFileLog(filepath.Join(dir, "audit.log"))
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLog.Close()

	event := audit.NewEvent(audit.EventCACreated, audit.OutcomeSuccess)
	event.Subject = authority.Certificate().Subject.String()
	event.Serial = authority.Certificate().SerialNumber.String()
	if err := auditLog.Append(event); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// passphraseFromEnv reads a passphrase from the named environment
// variable. Passphrases never appear on the command line.
func passphraseFromEnv(envVar string) (string, error) {
	if envVar == "" {
		return "", fmt.Errorf("--passphrase-env is required")
	}
	passphrase := os.Getenv(envVar)
	if passphrase == "" {
		return "", fmt.Errorf("environment variable %s is empty or unset", envVar)
	}
	return passphrase, nil
}
