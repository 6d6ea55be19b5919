// Package config loads the CLI configuration from an explicit YAML file.
// The core packages never read it; everything they need arrives as
// parameters, so the config surface stays a concern of the command layer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name inside the passvault directory.
const FileName = "config.yaml"

// ErrNotFound is returned when no config file exists at the given path.
var ErrNotFound = errors.New("config file not found")

// GeneratorDefaults seeds the generate command when flags are omitted.
type GeneratorDefaults struct {
	Length           int  `yaml:"length"`
	Symbols          bool `yaml:"symbols"`
	ExcludeAmbiguous bool `yaml:"exclude_ambiguous"`
}

// Config is the CLI configuration.
type Config struct {
	VaultPath string            `yaml:"vault_path"`
	LogLevel  string            `yaml:"log_level"`
	Generator GeneratorDefaults `yaml:"generator"`
}

// Default returns the configuration used when no file exists: a vault under
// the user's home directory and quiet logging.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		VaultPath: filepath.Join(home, ".passvault", "vault.db"),
		LogLevel:  "warn",
		Generator: GeneratorDefaults{
			Length:           16,
			Symbols:          true,
			ExcludeAmbiguous: true,
		},
	}
}

// Load reads the config file at path and fills unset fields from Default.
// A missing file returns ErrNotFound; callers typically fall back to
// Default in that case.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, ErrNotFound
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.VaultPath == "" {
		return fmt.Errorf("vault_path must not be empty")
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	if c.Generator.Length < 4 || c.Generator.Length > 128 {
		return fmt.Errorf("generator.length must be between 4 and 128, got %d", c.Generator.Length)
	}
	return nil
}
