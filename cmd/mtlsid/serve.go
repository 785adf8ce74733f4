package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/mtls-identity/internal/api/server"
)

// Serve command flags
var (
	serveConfigPath    string
	serveHost          string
	servePort          int
	serveCADir         string
	servePassphraseEnv string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrollment and rotation server",
	Long: `Start the enrollment and rotation HTTPS server.

The server loads the CA, issues itself a fresh server certificate, and
listens with mutual TLS. Client certificates are requested on every
connection but only enforced on routes that need an authenticated peer;
enrollment stays open so new devices can bootstrap.

Environment variables:
  MTLSID_CA_PASSPHRASE  CA key passphrase (unless --passphrase-env)

Examples:
  # Start from a config file
  mtlsid serve --config server.yaml

  # Start with flags only
  mtlsid serve --ca-dir ./ca --port 8443`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "YAML configuration file")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: all interfaces)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTPS port (default: 8443)")
	serveCmd.Flags().StringVar(&serveCADir, "ca-dir", "", "Path to CA directory")
	serveCmd.Flags().StringVar(&servePassphraseEnv, "passphrase-env", "MTLSID_CA_PASSPHRASE", "Environment variable holding the CA key passphrase")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := server.DefaultConfig()
	if serveConfigPath != "" {
		loaded, err := server.LoadConfig(serveConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags override the config file.
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveCADir != "" {
		cfg.CADir = serveCADir
	}
	if cfg.CAPassphrase == "" {
		cfg.CAPassphrase = os.Getenv(servePassphraseEnv)
	}

	if cfg.CADir == "" {
		return fmt.Errorf("CA directory is required (--ca-dir or ca_dir in config)")
	}

	return server.New(cfg, version).Start()
}
