package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/passvault/pkg/vault"
)

// Flags for the add command
var (
	addUsername string
	addURL      string
	addNotes    string
	addCategory string
	addTags     string
	addTOTP     string
	addExpires  string
	addGenerate bool
)

// Flags for the get command
var (
	getShowPassword bool
)

// Flags for the list command
var (
	listExpiring int
)

func init() {
	addCmd.Flags().StringVar(&addUsername, "username", "", "Account username")
	addCmd.Flags().StringVar(&addURL, "url", "", "Account URL")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Notes (stored encrypted)")
	addCmd.Flags().StringVar(&addCategory, "category", "", "Category")
	addCmd.Flags().StringVar(&addTags, "tags", "", "Comma-separated tags (e.g., work,dev)")
	addCmd.Flags().StringVar(&addTOTP, "totp-secret", "", "Base32 TOTP secret (stored encrypted)")
	addCmd.Flags().StringVar(&addExpires, "expires", "", "Expiration duration (e.g., 90d, 1y)")
	addCmd.Flags().BoolVar(&addGenerate, "generate", false, "Generate the password instead of prompting")

	getCmd.Flags().BoolVar(&getShowPassword, "show-password", false, "Print the password instead of masking it")

	listCmd.Flags().IntVar(&listExpiring, "expiring", 0, "Show only records expiring within N days")
}

// addCmd creates a new record
var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Adds a new record to the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		var password string
		if addGenerate {
			password, err = generatePassword()
			if err != nil {
				return err
			}
		} else {
			password, err = readPassphrase("Enter password for the record: ")
			if err != nil {
				return err
			}
		}

		p := vault.AddParams{
			Title:      args[0],
			Username:   addUsername,
			Password:   password,
			URL:        addURL,
			Notes:      addNotes,
			Category:   addCategory,
			TOTPSecret: addTOTP,
		}
		if addTags != "" {
			p.Tags = strings.Split(addTags, ",")
		}
		if addExpires != "" {
			d, err := parseDuration(addExpires)
			if err != nil {
				return fmt.Errorf("invalid expiration format: %w", err)
			}
			expiresAt := time.Now().Add(d)
			p.ExpiresAt = &expiresAt
		}

		id, err := v.Add(p)
		if err != nil {
			return fmt.Errorf("failed to add record: %w", err)
		}

		if addGenerate {
			fmt.Printf("Generated password: %s\n", password)
		}
		fmt.Printf("Record '%s' added (%s)\n", args[0], id)
		return nil
	},
}

// getCmd shows one record
var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Shows a record",
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
		if err := v.MarkUsed(rec.ID); err != nil {
			return fmt.Errorf("failed to mark record used: %w", err)
		}

		printRecord(rec)
		return nil
	},
}

func printRecord(rec *vault.Record) {
	fmt.Printf("Title:    %s\n", rec.Title)
	if rec.Username != "" {
		fmt.Printf("Username: %s\n", rec.Username)
	}
	if getShowPassword {
		fmt.Printf("Password: %s\n", rec.Password)
	} else {
		fmt.Printf("Password: ******** (use --show-password to reveal)\n")
	}
	if rec.URL != "" {
		fmt.Printf("URL:      %s\n", rec.URL)
	}
	if rec.Category != "" {
		fmt.Printf("Category: %s\n", rec.Category)
	}
	if len(rec.Tags) > 0 {
		fmt.Printf("Tags:     %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.Notes != "" {
		fmt.Printf("Notes:    %s\n", rec.Notes)
	}
	if rec.TOTPSecret != "" {
		fmt.Printf("TOTP:     configured (use 'passvault totp %s')\n", rec.ID)
	}
	fmt.Printf("Strength: %d/100\n", rec.StrengthScore)
	fmt.Printf("Modified: %s\n", rec.ModifiedAt.Format(time.RFC3339))
	if rec.ExpiresAt != nil {
		fmt.Printf("Expires:  %s\n", rec.ExpiresAt.Format("2006-01-02"))
	}
}

// listCmd lists all records
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists all records",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		var recs []*vault.Record
		if listExpiring > 0 {
			recs, err = v.ExpiringWithin(listExpiring)
		} else {
			recs, err = v.GetAll()
		}
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}
		printRecordList(recs)
		return nil
	},
}

// searchCmd finds records by substring
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Searches records by title, username, url, category, tags, or notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		recs, err := v.Search(args[0])
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		printRecordList(recs)
		return nil
	},
}

func printRecordList(recs []*vault.Record) {
	if len(recs) == 0 {
		fmt.Println("No records found")
		return
	}
	for _, rec := range recs {
		line := rec.ID + "  " + rec.Title
		if rec.Favorite {
			line += " *"
		}
		if rec.Username != "" {
			line += fmt.Sprintf(" (%s)", rec.Username)
		}
		if rec.ExpiresAt != nil {
			line += fmt.Sprintf(" [expires %s]", rec.ExpiresAt.Format("2006-01-02"))
		}
		fmt.Println(line)
	}
	fmt.Printf("\nTotal: %d records\n", len(recs))
}

// deleteCmd removes a record
var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Deletes a record and its history and attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		if err := v.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		fmt.Println("Record deleted")
		return nil
	},
}

// favoriteCmd toggles the favorite flag
var favoriteCmd = &cobra.Command{
	Use:   "favorite [id]",
	Short: "Toggles a record's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		if err := v.ToggleFavorite(args[0]); err != nil {
			return fmt.Errorf("failed to toggle favorite: %w", err)
		}
		fmt.Println("Favorite toggled")
		return nil
	},
}

// historyCmd shows prior passwords of a record
var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Shows a record's password history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		entries, err := v.History(args[0])
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No history")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n", e.ChangedAt.Format(time.RFC3339), e.Password)
		}
		return nil
	},
}

// parseDuration parses a duration string like "90d", "1y", "24h"
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %s", s)
	}

	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", valueStr)
	}

	switch unit {
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case 'y':
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return time.ParseDuration(s)
	}
}
