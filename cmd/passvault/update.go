package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/passvault/pkg/vault"
)

// Flags for the update command
var (
	updateTitle    string
	updateUsername string
	updatePassword bool
	updateURL      string
	updateNotes    string
	updateCategory string
	updateTags     string
	updateTOTP     string
	updateExpires  string
	updateNoExpiry bool
)

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	updateCmd.Flags().StringVar(&updateUsername, "username", "", "New username")
	updateCmd.Flags().BoolVar(&updatePassword, "password", false, "Prompt for a new password")
	updateCmd.Flags().StringVar(&updateURL, "url", "", "New URL")
	updateCmd.Flags().StringVar(&updateNotes, "notes", "", "New notes")
	updateCmd.Flags().StringVar(&updateCategory, "category", "", "New category")
	updateCmd.Flags().StringVar(&updateTags, "tags", "", "New comma-separated tags")
	updateCmd.Flags().StringVar(&updateTOTP, "totp-secret", "", "New base32 TOTP secret")
	updateCmd.Flags().StringVar(&updateExpires, "expires", "", "New expiration duration (e.g., 90d)")
	updateCmd.Flags().BoolVar(&updateNoExpiry, "no-expiry", false, "Remove the expiration date")
	updateCmd.MarkFlagsMutuallyExclusive("expires", "no-expiry")
}

// updateCmd edits an existing record. Only flags that were set change the
// record; the old password is snapshotted into history automatically.
var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Updates fields of an existing record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p vault.UpdateParams
		if cmd.Flags().Changed("title") {
			p.Title = &updateTitle
		}
		if cmd.Flags().Changed("username") {
			p.Username = &updateUsername
		}
		if cmd.Flags().Changed("url") {
			p.URL = &updateURL
		}
		if cmd.Flags().Changed("notes") {
			p.Notes = &updateNotes
		}
		if cmd.Flags().Changed("category") {
			p.Category = &updateCategory
		}
		if cmd.Flags().Changed("tags") {
			tags := strings.Split(updateTags, ",")
			p.Tags = &tags
		}
		if cmd.Flags().Changed("totp-secret") {
			p.TOTPSecret = &updateTOTP
		}
		if cmd.Flags().Changed("expires") {
			d, err := parseDuration(updateExpires)
			if err != nil {
				return fmt.Errorf("invalid expiration format: %w", err)
			}
			expiresAt := time.Now().Add(d)
			p.ExpiresAt = &expiresAt
		}
		p.ClearExpiry = updateNoExpiry

		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		if updatePassword {
			password, err := readPassphrase("Enter new password: ")
			if err != nil {
				return err
			}
			p.Password = &password
		}

		if err := v.Update(args[0], p); err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		fmt.Println("Record updated")
		return nil
	},
}
