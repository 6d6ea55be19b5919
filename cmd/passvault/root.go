package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/forest6511/passvault/internal/config"
	"github.com/forest6511/passvault/pkg/vault"
)

var (
	cfgPath   string
	vaultPath string
	cfg       config.Config
	logger    zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "passvault",
	Short: "passvault is a local encrypted password vault",
	Long:  `A single-user encrypted secret vault built with Go.`,
	// PersistentPreRunE loads the configuration and sets up logging before
	// any subcommand runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgPath != "" {
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
		} else {
			cfg = config.Default()
			if defaultPath := filepath.Join(filepath.Dir(cfg.VaultPath), config.FileName); fileExists(defaultPath) {
				cfg, err = config.Load(defaultPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}
		}
		if vaultPath != "" {
			cfg.VaultPath = vaultPath
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "Path to the vault database")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(totpCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(changePassphraseCmd)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// openVault prompts for the master passphrase and unlocks the configured
// vault. Callers are responsible for Lock.
func openVault() (*vault.Vault, error) {
	passphrase, err := readPassphrase("Enter master passphrase: ")
	if err != nil {
		return nil, err
	}
	v, err := vault.Open(vault.Config{Path: cfg.VaultPath, Logger: logger}, passphrase)
	if errors.Is(err, vault.ErrAuth) {
		return nil, fmt.Errorf("wrong passphrase")
	}
	if errors.Is(err, vault.ErrVaultNotFound) {
		return nil, fmt.Errorf("no vault at %s (run 'passvault init' first)", cfg.VaultPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unlock vault: %w", err)
	}
	return v, nil
}

// readPassphrase reads a secret without echo when stdin is a terminal, and
// falls back to a plain line read for piped input.
func readPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(b), nil
	}
	return readLine()
}

// readLine reads a single line from stdin, trimming the trailing newline.
func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
