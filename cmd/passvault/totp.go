package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/passvault/pkg/totp"
)

// TOTP command flags
var (
	totpURI    bool
	totpIssuer string
	totpWatch  bool
)

func init() {
	totpCmd.Flags().BoolVar(&totpURI, "uri", false, "Print the otpauth:// provisioning URI instead of a code")
	totpCmd.Flags().StringVar(&totpIssuer, "issuer", "passvault", "Issuer for the provisioning URI")
	totpCmd.Flags().BoolVar(&totpWatch, "watch", false, "Keep printing codes as they rotate")

	totpCmd.AddCommand(totpSecretCmd)
}

// totpCmd shows the current one-time code of a record
var totpCmd = &cobra.Command{
	Use:   "totp [id]",
	Short: "Shows the current TOTP code for a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		rec, err := v.Get(args[0])
		if err != nil {
			return fmt.Errorf("failed to get record: %w", err)
		}
		if rec.TOTPSecret == "" {
			return fmt.Errorf("record has no TOTP secret (set one with 'passvault update %s --totp-secret ...')", rec.ID)
		}

		if totpURI {
			fmt.Println(totp.URI(rec.TOTPSecret, rec.Username, totpIssuer))
			return nil
		}

		for {
			now := time.Now()
			code, err := totp.Code(rec.TOTPSecret, now, totp.DefaultTimeStep)
			if err != nil {
				return fmt.Errorf("failed to compute code: %w", err)
			}
			remaining := totp.Remaining(now, totp.DefaultTimeStep)
			fmt.Printf("%s (valid for %ds)\n", code, remaining)
			if !totpWatch {
				return nil
			}
			time.Sleep(time.Duration(remaining) * time.Second)
		}
	},
}

// totpSecretCmd generates a fresh shared secret
var totpSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generates a new base32 TOTP secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := totp.GenerateSecret()
		if err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}
		fmt.Println(secret)
		return nil
	},
}
