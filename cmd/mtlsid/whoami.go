package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/mtls-identity/internal/identity"
	"github.com/remiblancher/mtls-identity/internal/keystore"
	"github.com/remiblancher/mtls-identity/internal/trust"
)

// Whoami command flags
var (
	whoamiStoreDir      string
	whoamiPassphraseEnv string
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the claims of the current identity",
	RunE:  runWhoami,
}

func init() {
	whoamiCmd.Flags().StringVar(&whoamiStoreDir, "store", "", "Device key store directory (required)")
	whoamiCmd.Flags().StringVar(&whoamiPassphraseEnv, "passphrase-env", "MTLSID_STORE_PASSPHRASE", "Environment variable holding the key store passphrase")

	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	if whoamiStoreDir == "" {
		return fmt.Errorf("--store is required")
	}

	passphrase, err := passphraseFromEnv(whoamiPassphraseEnv)
	if err != nil {
		return err
	}

	keys, err := keystore.NewSoftwareStore(whoamiStoreDir, []byte(passphrase))
	if err != nil {
		return err
	}

	id, err := identity.NewFileStore(keys).Current()
	if err != nil {
		return err
	}

	claims := trust.ExtractClaims(id.Certificate)
	fmt.Printf("CN:          %s\n", claims.CommonName)
	if claims.Organization != "" {
		fmt.Printf("O:           %s\n", claims.Organization)
	}
	if claims.OrganizationalUnit != "" {
		fmt.Printf("OU:          %s\n", claims.OrganizationalUnit)
	}
	fmt.Printf("Issuer:      %s\n", claims.IssuerCommonName)
	fmt.Printf("Serial:      %s\n", claims.SerialNumber)
	fmt.Printf("Fingerprint: %s\n", claims.FingerprintSHA256)
	fmt.Printf("Valid:       %s to %s\n",
		claims.ValidFrom.UTC().Format(time.RFC3339),
		claims.ValidTo.UTC().Format(time.RFC3339))
	fmt.Printf("Source:      %s\n", id.Source)
	return nil
}
