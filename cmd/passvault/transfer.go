package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// statsCmd summarizes the vault contents
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows vault statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		st, err := v.Statistics()
		if err != nil {
			return fmt.Errorf("failed to compute statistics: %w", err)
		}

		fmt.Printf("Records:   %d (%d favorites)\n", st.Total, st.Favorites)
		fmt.Printf("Strength:  %d strong / %d medium / %d weak\n",
			st.Strength.Strong, st.Strength.Medium, st.Strength.Weak)
		if len(st.ByCategory) > 0 {
			fmt.Println("Categories:")
			names := make([]string, 0, len(st.ByCategory))
			for name := range st.ByCategory {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %-20s %d\n", name, st.ByCategory[name])
			}
		}
		return nil
	},
}

// exportCmd writes all records to plaintext CSV
var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Exports all records to a plaintext CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		if err := v.ExportCSV(args[0]); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Printf("Exported to %s\n", args[0])
		fmt.Println("Warning: the export contains plaintext passwords; delete it when done")
		return nil
	},
}

// importCmd reads records from a CSV file
var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Imports records from a CSV file (title,username,password,url,category,tags,notes)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		n, err := v.ImportCSV(args[0])
		if err != nil {
			return fmt.Errorf("import failed after %d records: %w", n, err)
		}
		fmt.Printf("Imported %d records\n", n)
		return nil
	},
}

// backupCmd snapshots the vault and its companion files
var backupCmd = &cobra.Command{
	Use:   "backup [file]",
	Short: "Writes an encrypted backup of the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		if err := v.Backup(args[0]); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Backup written to %s (with .salt and .verify companions)\n", args[0])
		return nil
	},
}

// changePassphraseCmd rotates the master passphrase
var changePassphraseCmd = &cobra.Command{
	Use:   "change-passphrase",
	Short: "Changes the master passphrase and re-encrypts the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		pass1, err := readPassphrase("Enter new master passphrase: ")
		if err != nil {
			return err
		}
		pass2, err := readPassphrase("Confirm new master passphrase: ")
		if err != nil {
			return err
		}
		if pass1 != pass2 {
			return fmt.Errorf("passphrases do not match")
		}

		if err := v.ChangeMasterPassphrase(pass1); err != nil {
			return fmt.Errorf("failed to change passphrase: %w", err)
		}
		fmt.Println("Master passphrase changed")
		return nil
	},
}
