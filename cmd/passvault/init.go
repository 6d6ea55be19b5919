package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forest6511/passvault/pkg/strength"
	"github.com/forest6511/passvault/pkg/vault"
)

// initCmd creates a new vault
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes a new vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Initializing new vault at %s\n", cfg.VaultPath)

		if err := os.MkdirAll(filepath.Dir(cfg.VaultPath), 0700); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}

		pass1, err := readPassphrase("Enter master passphrase: ")
		if err != nil {
			return err
		}
		pass2, err := readPassphrase("Confirm master passphrase: ")
		if err != nil {
			return err
		}
		if pass1 != pass2 {
			return fmt.Errorf("passphrases do not match")
		}

		// Strength warnings are advisory, not blocking.
		analysis := strength.Analyze(pass1)
		fmt.Printf("Passphrase strength: %s (%d/100)\n", analysis.Grade, analysis.Score)
		for _, issue := range analysis.Issues {
			fmt.Printf("Warning: %s\n", issue)
		}

		v, err := vault.Create(vault.Config{Path: cfg.VaultPath, Logger: logger}, pass1)
		if err != nil {
			return fmt.Errorf("failed to create vault: %w", err)
		}
		defer v.Lock()

		fmt.Printf("Vault created at %s\n", cfg.VaultPath)
		return nil
	},
}
