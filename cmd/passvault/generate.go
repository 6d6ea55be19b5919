// Package main provides the passvault CLI commands.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/passvault/pkg/generator"
	"github.com/forest6511/passvault/pkg/strength"
)

// Generate command flags
var (
	generateLength      int
	generateCount       int
	generateNoSymbols   bool
	generateNoDigits    bool
	generateNoUppercase bool
	generateNoLowercase bool
	generateAmbiguous   bool
	generateMemorable   int
	generatePIN         int
	generateAnalyze     bool
)

const (
	defaultGenerateCount = 1
	maxGenerateCount     = 100
)

func init() {
	generateCmd.Flags().IntVarP(&generateLength, "length", "l", 0, "Password length (defaults to the configured length)")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", defaultGenerateCount, "Number of passwords to generate (1-100)")
	generateCmd.Flags().BoolVar(&generateNoSymbols, "no-symbols", false, "Exclude symbols")
	generateCmd.Flags().BoolVar(&generateNoDigits, "no-digits", false, "Exclude digits")
	generateCmd.Flags().BoolVar(&generateNoUppercase, "no-uppercase", false, "Exclude uppercase letters")
	generateCmd.Flags().BoolVar(&generateNoLowercase, "no-lowercase", false, "Exclude lowercase letters")
	generateCmd.Flags().BoolVar(&generateAmbiguous, "allow-ambiguous", false, "Keep visually ambiguous characters (0O1lI)")
	generateCmd.Flags().IntVar(&generateMemorable, "memorable", 0, "Generate a memorable passphrase of N words instead")
	generateCmd.Flags().IntVar(&generatePIN, "pin", 0, "Generate an N-digit PIN instead")
	generateCmd.Flags().BoolVar(&generateAnalyze, "analyze", false, "Show a strength analysis of each password")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate secure random passwords",
	Long: `Generate cryptographically secure random passwords.

Examples:
  # Generate one password with the configured defaults
  passvault generate

  # Generate a 32-character password without symbols
  passvault generate -l 32 --no-symbols

  # Generate a four-word memorable passphrase
  passvault generate --memorable 4

  # Generate a 6-digit PIN
  passvault generate --pin 6`,
	RunE: executeGenerate,
}

func executeGenerate(cmd *cobra.Command, args []string) error {
	if generateCount < 1 || generateCount > maxGenerateCount {
		return fmt.Errorf("count must be between 1 and %d", maxGenerateCount)
	}
	if generateMemorable > 0 && generatePIN > 0 {
		return fmt.Errorf("--memorable and --pin are mutually exclusive")
	}

	for i := 0; i < generateCount; i++ {
		password, err := generateOne()
		if err != nil {
			return err
		}
		fmt.Println(password)
		if generateAnalyze {
			a := strength.Analyze(password)
			fmt.Printf("  score %d/100 (%s), crack time %s\n", a.Score, a.Grade, a.CrackTime)
		}
	}
	return nil
}

func generateOne() (string, error) {
	switch {
	case generateMemorable > 0:
		return generator.Memorable(generateMemorable)
	case generatePIN > 0:
		return generator.PIN(generatePIN)
	default:
		p := generatorPolicy()
		out, err := generator.Random(p)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		return out, nil
	}
}

// configPolicy seeds a policy from the loaded configuration.
func configPolicy() generator.Policy {
	p := generator.DefaultPolicy()
	p.Length = cfg.Generator.Length
	p.Symbols = cfg.Generator.Symbols
	p.ExcludeAmbiguous = cfg.Generator.ExcludeAmbiguous
	return p
}

// generatorPolicy merges config defaults with command flags.
func generatorPolicy() generator.Policy {
	p := configPolicy()
	if generateLength > 0 {
		p.Length = generateLength
	}
	if generateNoSymbols {
		p.Symbols = false
	}
	if generateNoDigits {
		p.Digits = false
	}
	if generateNoUppercase {
		p.Upper = false
	}
	if generateNoLowercase {
		p.Lower = false
	}
	if generateAmbiguous {
		p.ExcludeAmbiguous = false
	}
	return p
}

// generatePassword is the shared helper used by 'add --generate'.
func generatePassword() (string, error) {
	out, err := generator.Random(configPolicy())
	if err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return out, nil
}
