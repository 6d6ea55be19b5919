package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, "vault_path: /tmp/v.db\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/v.db", cfg.VaultPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 16, cfg.Generator.Length)
	assert.True(t, cfg.Generator.ExcludeAmbiguous)
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `vault_path: /data/vault.db
log_level: debug
generator:
  length: 24
  symbols: false
  exclude_ambiguous: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 24, cfg.Generator.Length)
	assert.False(t, cfg.Generator.Symbols)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadInvalid(t *testing.T) {
	for _, content := range []string{
		"vault_path: ''\n",
		"log_level: loud\n",
		"generator:\n  length: 2\n",
		"generator:\n  length: 500\n",
	} {
		path := writeConfig(t, content)
		_, err := Load(path)
		assert.Error(t, err, content)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "vault_path: [unclosed\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.VaultPath)
	require.NoError(t, cfg.Validate())
}
