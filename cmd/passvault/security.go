package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forest6511/passvault/pkg/security"
)

// Audit command flags
var (
	auditLogLimit int
)

func init() {
	auditCmd.AddCommand(auditLogCmd)
	auditCmd.AddCommand(auditVerifyCmd)

	auditLogCmd.Flags().IntVar(&auditLogLimit, "limit", 100, "Maximum number of entries to show")
}

// auditCmd runs a security scan over all records
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Scans the vault for weak, reused, stale, and expiring credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		records, err := v.GetAll()
		if err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}

		scanner := security.NewScanner(records, security.Config{Logger: logger})
		progress, result := scanner.Run(cmd.Context())

		for p := range progress {
			fmt.Fprintf(os.Stderr, "\rScanning %d/%d: %-40.40s", p.Current, p.Total, p.Title)
		}
		fmt.Fprintln(os.Stderr)

		rep, ok := <-result
		if !ok {
			return fmt.Errorf("audit cancelled")
		}

		fmt.Printf("Health score: %d/100 (%d records)\n", rep.HealthScore, rep.Total)
		if len(rep.Findings) == 0 {
			fmt.Println("No findings")
			return nil
		}
		fmt.Printf("Findings: %d weak, %d reused groups, %d stale, %d expiring, %d missing 2FA\n\n",
			rep.Weak, rep.ReusedGroups, rep.Stale, rep.Expiring, rep.MissingTwoFactor)
		for _, f := range rep.Findings {
			fmt.Printf("[%s] %s: %s\n", f.Type, f.Title, f.Detail)
		}
		return nil
	},
}

// auditLogCmd lists the tamper-evident operation log
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Lists the vault's operation audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		entries, err := v.AuditLog(auditLogLimit)
		if err != nil {
			return fmt.Errorf("failed to list audit log: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No audit entries")
			return nil
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action)
			if e.RecordID != "" {
				line += " record:" + e.RecordID
			}
			if e.Details != "" {
				line += " " + e.Details
			}
			fmt.Println(line)
		}
		fmt.Printf("\nTotal: %d entries\n", len(entries))
		return nil
	},
}

// auditVerifyCmd checks the audit log HMAC chain
var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verifies the audit log HMAC chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		n, err := v.VerifyAuditChain()
		if err != nil {
			return fmt.Errorf("audit log verification failed after %d entries: %w", n, err)
		}
		fmt.Printf("Audit log verified: %d entries, chain intact\n", n)
		return nil
	},
}
