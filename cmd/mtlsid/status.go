package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/mtls-identity/internal/identity"
	"github.com/remiblancher/mtls-identity/internal/keystore"
	"github.com/remiblancher/mtls-identity/internal/rotation"
	"github.com/remiblancher/mtls-identity/internal/trust"
)

// Status command flags
var (
	statusStoreDir      string
	statusServer        string
	statusCACert        string
	statusThreshold     int
	statusPassphraseEnv string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show rotation status for the current identity",
	Long: `Show rotation status for the current identity.

Evaluates the installed certificate's remaining validity against the
rotation thresholds. With --server, the issuing side's judgment is
fetched over mTLS and combined with the local one; if the fetch fails
the local judgment is reported as degraded.

Examples:
  # Local evaluation only
  mtlsid status --store ~/.mtlsid

  # Combine with the server's judgment
  mtlsid status --store ~/.mtlsid --server https://pki.example.com:8443 --ca-cert ./ca.crt`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusStoreDir, "store", "", "Device key store directory (required)")
	statusCmd.Flags().StringVar(&statusServer, "server", "", "Enrollment server base URL (optional)")
	statusCmd.Flags().StringVar(&statusCACert, "ca-cert", "", "Pinned CA certificate file (required with --server)")
	statusCmd.Flags().IntVar(&statusThreshold, "threshold", 0, "Required-rotation window in days (default: 14, clamped to 1-90)")
	statusCmd.Flags().StringVar(&statusPassphraseEnv, "passphrase-env", "MTLSID_STORE_PASSPHRASE", "Environment variable holding the key store passphrase")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusStoreDir == "" {
		return fmt.Errorf("--store is required")
	}

	passphrase, err := passphraseFromEnv(statusPassphraseEnv)
	if err != nil {
		return err
	}

	keys, err := keystore.NewSoftwareStore(statusStoreDir, []byte(passphrase))
	if err != nil {
		return err
	}
	identities := identity.NewFileStore(keys)

	id, err := identities.Current()
	if err != nil {
		return err
	}

	var fetcher rotation.StatusFetcher
	if statusServer != "" {
		if statusCACert == "" {
			return fmt.Errorf("--ca-cert is required with --server")
		}
		client, err := mutualTLSClient(keys, id, statusCACert, statusServer)
		if err != nil {
			return err
		}
		fetcher = rotation.NewHTTPFetcher(statusServer, client)
	}

	engine := rotation.NewEngine(identities, fetcher, statusThreshold, 0)
	status := engine.Evaluate(context.Background(), id)

	fmt.Printf("Identity: %s\n", id.Certificate.Subject.CommonName)
	fmt.Printf("  Expires:          %s\n", id.Certificate.NotAfter.Format(time.RFC3339))
	fmt.Printf("  Days until expiry: %d\n", status.DaysUntilExpiry)
	fmt.Printf("  Rotation required: %v\n", status.Required)
	fmt.Printf("  Recommended:       %v\n", status.Recommended)
	if status.Degraded {
		fmt.Println("  (server unreachable, local judgment only)")
	}
	return nil
}

// mutualTLSClient builds an HTTP client that presents the identity's
// certificate and pins the CA in certPath.
func mutualTLSClient(keys keystore.SecureKeyStore, id *identity.Identity, certPath, serverURL string) (*http.Client, error) {
	pinned, err := loadPinnedCA(certPath)
	if err != nil {
		return nil, err
	}

	signer, err := keys.Signer(id.KeyRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity key: %w", err)
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	clientCert := tls.Certificate{
		Certificate: [][]byte{id.Certificate.Raw},
		PrivateKey:  signer,
		Leaf:        id.Certificate,
	}
	validator := trust.NewValidator(pinned)
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: trust.ClientTLSConfigWithIdentity(clientCert, validator, u.Hostname()),
		},
	}, nil
}
