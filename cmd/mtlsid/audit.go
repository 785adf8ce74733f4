package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/mtls-identity/internal/audit"
)

var auditFile string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long: `Inspect the tamper-evident audit log.

Every lifecycle operation (CA creation, server start, certificate
issuance, enrollment rejection) is recorded as a hash-chained JSONL
entry. The chain makes insertion, removal or mutation of entries
detectable.

Examples:
  # Verify the audit chain of a CA directory
  mtlsid audit verify --file ./ca/audit.log`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log hash chain",
	RunE:  runAuditVerify,
}

func init() {
	auditVerifyCmd.Flags().StringVar(&auditFile, "file", "", "Audit log file (required)")

	auditCmd.AddCommand(auditVerifyCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	if auditFile == "" {
		return fmt.Errorf("--file is required")
	}

	count, err := audit.Verify(auditFile)
	if err != nil {
		return fmt.Errorf("audit chain invalid after %d entries: %w", count, err)
	}

	fmt.Printf("Audit chain valid: %d entries\n", count)
	return nil
}
