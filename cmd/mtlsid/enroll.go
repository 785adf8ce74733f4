package main

import (
	"context"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/mtls-identity/internal/enroll"
	"github.com/remiblancher/mtls-identity/internal/identity"
	"github.com/remiblancher/mtls-identity/internal/keystore"
	"github.com/remiblancher/mtls-identity/internal/trust"
	"github.com/remiblancher/mtls-identity/internal/x509util"
)

// Enroll command flags
var (
	enrollServer        string
	enrollDeviceID      string
	enrollCommonName    string
	enrollStoreDir      string
	enrollCACert        string
	enrollPassphraseEnv string
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll this device for an mTLS identity",
	Long: `Enroll this device for an mTLS identity.

Generates a keypair in the local key store, builds a CSR, submits it to
the enrollment server, and installs the issued certificate as the
current identity. The private key never leaves this machine.

If any step fails, nothing is persisted: the generated key is removed
and the previous identity (if any) stays current.

The server's CA certificate must be provided out-of-band with --ca-cert;
it is pinned for the TLS connection.

Examples:
  mtlsid enroll --server https://pki.example.com:8443 \
      --device-id dev-01 --cn dev-01 \
      --ca-cert ./ca.crt --store ~/.mtlsid`,
	RunE: runEnroll,
}

func init() {
	enrollCmd.Flags().StringVar(&enrollServer, "server", "", "Enrollment server base URL (required)")
	enrollCmd.Flags().StringVar(&enrollDeviceID, "device-id", "", "Device identifier (required)")
	enrollCmd.Flags().StringVar(&enrollCommonName, "cn", "", "Requested certificate common name (required)")
	enrollCmd.Flags().StringVar(&enrollStoreDir, "store", "", "Device key store directory (required)")
	enrollCmd.Flags().StringVar(&enrollCACert, "ca-cert", "", "Pinned CA certificate file (required)")
	enrollCmd.Flags().StringVar(&enrollPassphraseEnv, "passphrase-env", "MTLSID_STORE_PASSPHRASE", "Environment variable holding the key store passphrase")

	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	switch {
	case enrollServer == "":
		return fmt.Errorf("--server is required")
	case enrollDeviceID == "":
		return fmt.Errorf("--device-id is required")
	case enrollCommonName == "":
		return fmt.Errorf("--cn is required")
	case enrollStoreDir == "":
		return fmt.Errorf("--store is required")
	case enrollCACert == "":
		return fmt.Errorf("--ca-cert is required")
	}

	passphrase, err := passphraseFromEnv(enrollPassphraseEnv)
	if err != nil {
		return err
	}

	keys, err := keystore.NewSoftwareStore(enrollStoreDir, []byte(passphrase))
	if err != nil {
		return err
	}
	identities := identity.NewFileStore(keys)

	client, err := pinnedHTTPClient(enrollCACert, enrollServer)
	if err != nil {
		return err
	}
	transport := enroll.NewHTTPTransport(enrollServer, client, 0)

	orchestrator := enroll.New(keys, identities, transport)
	id, err := orchestrator.Start(context.Background(), enrollDeviceID, enrollCommonName)
	if err != nil {
		state, reason := orchestrator.State()
		return fmt.Errorf("enrollment %s (%s): %w", state, reason, err)
	}

	fmt.Printf("Enrolled as %q\n", id.Certificate.Subject.CommonName)
	fmt.Printf("  Fingerprint: %s\n", id.Fingerprint())
	fmt.Printf("  Expires:     %s\n", id.Certificate.NotAfter.Format(time.RFC3339))
	return nil
}

// pinnedHTTPClient builds an HTTP client that trusts only the CA
// certificate in certPath.
func pinnedHTTPClient(certPath, serverURL string) (*http.Client, error) {
	pinned, err := loadPinnedCA(certPath)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	validator := trust.NewValidator(pinned)
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: trust.ClientTLSConfig(validator, u.Hostname()),
		},
	}, nil
}

// loadPinnedCA reads a PEM CA certificate from disk.
func loadPinnedCA(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	return x509util.ParseCertPEM(data)
}
