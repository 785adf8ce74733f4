// Command mtlsid manages mutual-TLS device identities: the issuing CA,
// the enrollment server, and device-side enrollment and rotation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mtlsid",
	Short: "mTLS identity lifecycle toolkit",
	Long: `mtlsid manages X.509 identities for mutual TLS.

It covers the full lifecycle: a private Certificate Authority, an
enrollment server that signs device CSRs, device-side enrollment with
locally generated keys, and rotation tracking for installed identities.

Examples:
  # Initialize the CA
  mtlsid ca init --dir ./ca --cn "Fleet Root CA" --passphrase-env CA_PASSPHRASE

  # Start the enrollment server
  mtlsid serve --config server.yaml

  # Enroll this device
  mtlsid enroll --server https://pki.example.com:8443 --device-id dev-01 --cn dev-01`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mtlsid %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
