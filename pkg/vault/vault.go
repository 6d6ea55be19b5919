// Package vault provides the encrypted secret store for passvault.
//
// A vault is three artifacts on disk: a SQLite database holding encrypted
// records, and two small companion files derived by replacing the database
// extension: the per-vault salt and the passphrase verification hash.
// Secret fields (password, notes, TOTP secret) are individually encrypted
// with the session key; plaintext never touches the database or the logs.
package vault

import (
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"

	"github.com/forest6511/passvault/pkg/crypto"

	_ "modernc.org/sqlite"
)

// Constants
const (
	SaltExt   = ".salt"   // companion salt file extension
	VerifyExt = ".verify" // companion verification-hash file extension
	FileMode  = 0600      // owner read/write only

	// SchemaVersion is the current database schema version, stored in the
	// settings table.
	SchemaVersion = 1
)

// Errors
var (
	ErrVaultAlreadyExists = errors.New("vault: vault already exists at this path")
	ErrVaultNotFound      = errors.New("vault: vault not found at this path")
	ErrVaultLocked        = errors.New("vault: vault is locked")
	ErrAuth               = errors.New("vault: invalid master passphrase")
	ErrRecordNotFound     = errors.New("vault: record not found")
	ErrAttachmentNotFound = errors.New("vault: attachment not found")
	ErrValidation         = errors.New("vault: validation failed")
	ErrVaultCorrupted     = errors.New("vault: vault is corrupted, restore from backup")
)

// Config is the explicit per-vault configuration handed to Create and Open.
// There is no process-wide implicit state: everything the store needs is in
// this struct.
type Config struct {
	// Path is the vault database file. The salt and verification-hash
	// companions live beside it with SaltExt and VerifyExt extensions.
	Path string

	// Logger receives non-sensitive operational events. Defaults to a
	// no-op logger. Secret material is never logged.
	Logger zerolog.Logger
}

// Vault is the file-backed Store implementation.
type Vault struct {
	cfg Config
	db  *sql.DB
	key []byte // derived session key; wiped at Lock
	mu  sync.RWMutex
	log zerolog.Logger

	validate *validator.Validate

	// auditKey signs the append-only audit trail; derived from the session
	// key via HKDF so it never equals the encryption key.
	auditKey []byte
}

// saltPath returns the companion salt file for a vault database path.
func saltPath(dbPath string) string {
	return replaceExt(dbPath, SaltExt)
}

// verifyPath returns the companion verification-hash file.
func verifyPath(dbPath string) string {
	return replaceExt(dbPath, VerifyExt)
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// Create initializes a new vault at cfg.Path protected by the passphrase:
// a fresh random salt, the passphrase verification hash, and an empty
// database with the full schema. The returned vault is unlocked.
func Create(cfg Config, passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: passphrase must not be empty", ErrValidation)
	}
	if _, err := os.Stat(cfg.Path); err == nil {
		return nil, ErrVaultAlreadyExists
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(saltPath(cfg.Path), salt, FileMode); err != nil {
		return nil, fmt.Errorf("vault: failed to write salt file: %w", err)
	}
	verify := crypto.VerificationHash(passphrase)
	if err := os.WriteFile(verifyPath(cfg.Path), []byte(verify), FileMode); err != nil {
		return nil, fmt.Errorf("vault: failed to write verification file: %w", err)
	}

	key := crypto.DeriveKey([]byte(passphrase), salt)

	v, err := open(cfg, key)
	if err != nil {
		return nil, err
	}
	if err := v.createTables(); err != nil {
		v.Lock()
		return nil, fmt.Errorf("vault: failed to create tables: %w", err)
	}
	if err := os.Chmod(cfg.Path, FileMode); err != nil {
		v.Lock()
		return nil, fmt.Errorf("vault: failed to set database permissions: %w", err)
	}

	v.log.Info().Str("path", cfg.Path).Msg("vault created")
	return v, nil
}

// Open unlocks an existing vault with the passphrase.
//
// The passphrase is checked against the persisted verification hash before
// any key derivation, so a wrong passphrase fails fast with ErrAuth and no
// decryption is ever attempted with a bad key.
func Open(cfg Config, passphrase string) (*Vault, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("vault: failed to stat vault file: %w", err)
	}

	stored, err := os.ReadFile(verifyPath(cfg.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultCorrupted
		}
		return nil, fmt.Errorf("vault: failed to read verification file: %w", err)
	}
	if crypto.VerificationHash(passphrase) != string(stored) {
		return nil, ErrAuth
	}

	salt, err := os.ReadFile(saltPath(cfg.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultCorrupted
		}
		return nil, fmt.Errorf("vault: failed to read salt file: %w", err)
	}
	if len(salt) != crypto.SaltLength {
		return nil, ErrVaultCorrupted
	}

	key := crypto.DeriveKey([]byte(passphrase), salt)

	v, err := open(cfg, key)
	if err != nil {
		return nil, err
	}
	if err := v.checkSchema(); err != nil {
		v.Lock()
		return nil, err
	}

	v.log.Info().Str("path", cfg.Path).Msg("vault unlocked")
	return v, nil
}

// open wires up the database connection and derived keys. The caller has
// already authenticated.
func open(cfg Config, key []byte) (*Vault, error) {
	db, err := sql.Open("sqlite", cfg.Path+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("vault: failed to open database: %w", err)
	}

	// Single connection: one local process writes at a time and this
	// avoids "database is locked" errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// WAL keeps a crash mid-write from corrupting committed records.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("vault: failed to configure database: %w", err)
		}
	}

	v := &Vault{
		cfg:      cfg,
		db:       db,
		key:      key,
		log:      cfg.Logger,
		validate: validator.New(),
	}
	v.auditKey = deriveAuditKey(key)
	return v, nil
}

// deriveAuditKey derives the audit-trail signing key from the session key
// using HKDF-SHA256 so the two keys are never interchangeable.
func deriveAuditKey(key []byte) []byte {
	out := make([]byte, 32)
	r := hkdf.New(sha256.New, key, nil, []byte("passvault-audit-v1"))
	if _, err := r.Read(out); err != nil {
		// HKDF over a fixed-size output cannot fail; guard anyway.
		panic(fmt.Sprintf("vault: hkdf failure: %v", err))
	}
	return out
}

// Lock closes the vault, securely destroying the session key in memory.
// The key is explicitly zeroed, never left to garbage collection.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key != nil {
		crypto.SecureWipe(v.key)
		v.key = nil
	}
	if v.auditKey != nil {
		crypto.SecureWipe(v.auditKey)
		v.auditKey = nil
	}
	if v.db != nil {
		v.db.Close()
		v.db = nil
		v.log.Info().Str("path", v.cfg.Path).Msg("vault locked")
	}
}

// Close is an alias for Lock, satisfying callers that expect io.Closer
// naming.
func (v *Vault) Close() error {
	v.Lock()
	return nil
}

// IsLocked reports whether the session key has been destroyed.
func (v *Vault) IsLocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key == nil
}

// Path returns the vault database path.
func (v *Vault) Path() string {
	return v.cfg.Path
}

// createTables creates the vault schema.
func (v *Vault) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			username TEXT,
			password BLOB NOT NULL,
			url TEXT,
			notes BLOB,
			category TEXT,
			tags TEXT,
			totp_secret BLOB,
			created_at TEXT,
			modified_at TEXT,
			last_used TEXT,
			expires_at TEXT,
			is_favorite INTEGER DEFAULT 0,
			strength_score INTEGER DEFAULT 0,
			icon TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
			password BLOB NOT NULL,
			changed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			record_id TEXT,
			timestamp TEXT NOT NULL,
			details TEXT,
			prev_hash TEXT,
			hmac TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			data BLOB,
			size INTEGER,
			created_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_title ON records(title)`,
		`CREATE INDEX IF NOT EXISTS idx_records_category ON records(category)`,
		`CREATE INDEX IF NOT EXISTS idx_records_favorite ON records(is_favorite)`,
		`CREATE INDEX IF NOT EXISTS idx_history_record ON history(record_id)`,
	}
	for _, stmt := range stmts {
		if _, err := v.db.Exec(stmt); err != nil {
			return err
		}
	}

	_, err := v.db.Exec(
		`INSERT OR REPLACE INTO settings (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprintf("%d", SchemaVersion))
	return err
}

// checkSchema verifies the opened database carries the expected tables.
// A missing schema means the file is not a passvault database.
func (v *Vault) checkSchema() error {
	for _, table := range []string{"records", "history", "audit_log", "settings", "attachments"} {
		var name string
		err := v.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: missing table %s", ErrVaultCorrupted, table)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrVaultCorrupted, err)
		}
	}
	return nil
}

// locked returns ErrVaultLocked when the vault has no key material; callers
// hold at least a read lock.
func (v *Vault) locked() error {
	if v.key == nil || v.db == nil {
		return ErrVaultLocked
	}
	return nil
}

// now returns the current UTC time truncated to seconds, the granularity
// persisted in the store.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
