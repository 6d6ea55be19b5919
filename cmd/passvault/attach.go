package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Attachment command flags
var (
	attachOutput string
)

func init() {
	rootCmd.AddCommand(attachCmd)
	attachCmd.AddCommand(attachAddCmd)
	attachCmd.AddCommand(attachListCmd)
	attachCmd.AddCommand(attachGetCmd)
	attachCmd.AddCommand(attachDeleteCmd)

	attachGetCmd.Flags().StringVarP(&attachOutput, "output", "o", "", "Output file (default: original filename)")
}

// attachCmd is the parent command for encrypted file attachments
var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Manage encrypted file attachments on records",
}

// attachAddCmd encrypts and stores a file against a record
var attachAddCmd = &cobra.Command{
	Use:   "add [record-id] [file]",
	Short: "Attaches a file to a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		id, err := v.AddAttachment(args[0], filepath.Base(args[1]), data)
		if err != nil {
			return fmt.Errorf("failed to attach file: %w", err)
		}
		fmt.Printf("Attachment added (%s)\n", id)
		return nil
	},
}

// attachListCmd lists a record's attachments
var attachListCmd = &cobra.Command{
	Use:   "list [record-id]",
	Short: "Lists a record's attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		list, err := v.Attachments(args[0])
		if err != nil {
			return fmt.Errorf("failed to list attachments: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No attachments")
			return nil
		}
		for _, a := range list {
			fmt.Printf("%s  %s (%d bytes)\n", a.ID, a.Filename, a.Size)
		}
		return nil
	},
}

// attachGetCmd decrypts an attachment to disk
var attachGetCmd = &cobra.Command{
	Use:   "get [attachment-id]",
	Short: "Writes an attachment's decrypted content to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		data, err := v.AttachmentData(args[0])
		if err != nil {
			return fmt.Errorf("failed to read attachment: %w", err)
		}

		out := attachOutput
		if out == "" {
			out = args[0] + ".out"
		}
		if err := os.WriteFile(out, data, 0600); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(data), out)
		return nil
	},
}

// attachDeleteCmd removes an attachment
var attachDeleteCmd = &cobra.Command{
	Use:   "delete [attachment-id]",
	Short: "Deletes an attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.Lock()

		if err := v.DeleteAttachment(args[0]); err != nil {
			return fmt.Errorf("failed to delete attachment: %w", err)
		}
		fmt.Println("Attachment deleted")
		return nil
	},
}
