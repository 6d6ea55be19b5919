package vault

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/forest6511/passvault/pkg/crypto"
)

// ChangeMasterPassphrase re-encrypts every secret under a key derived from
// the new passphrase. All ciphertext rewrites commit in one transaction.
// The new salt and verification files are staged to temp names before the
// commit and renamed into place right after it, so a crash leaves at worst
// a rename pair to redo rather than companions that mismatch the database.
func (v *Vault) ChangeMasterPassphrase(newPassphrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return err
	}
	if newPassphrase == "" {
		return fmt.Errorf("%w: passphrase must not be empty", ErrValidation)
	}

	newSalt, err := crypto.GenerateSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	newKey := crypto.DeriveKey([]byte(newPassphrase), newSalt)

	tx, err := v.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	reencrypt := func(blob []byte) ([]byte, error) {
		plain, err := crypto.Decrypt(blob, v.key)
		if err != nil {
			return nil, err
		}
		defer crypto.SecureWipe(plain)
		return crypto.Encrypt(plain, newKey)
	}

	type blobColumn struct {
		table, id, col string
	}
	for _, bc := range []blobColumn{
		{"records", "id", "password"},
		{"records", "id", "notes"},
		{"records", "id", "totp_secret"},
		{"history", "id", "password"},
		{"attachments", "id", "data"},
	} {
		if err := rewriteColumn(tx, bc.table, bc.id, bc.col, reencrypt); err != nil {
			return fmt.Errorf("rewrite %s.%s: %w", bc.table, bc.col, err)
		}
	}
	// The audit signing key rotates with the session key, so the existing
	// chain must be re-signed before the rotation entry is appended.
	newAuditKey := deriveAuditKey(newKey)
	if err := rewriteAuditChain(tx, newAuditKey); err != nil {
		return err
	}
	if err := appendAuditKeyed(tx, newAuditKey, ActionRekey, "", ""); err != nil {
		return err
	}
	saltFile := saltPath(v.cfg.Path)
	verifyFile := verifyPath(v.cfg.Path)
	saltTmp, err := stageFile(saltFile, newSalt)
	if err != nil {
		return fmt.Errorf("stage salt: %w", err)
	}
	verifyTmp, err := stageFile(verifyFile, []byte(crypto.VerificationHash(newPassphrase)))
	if err != nil {
		os.Remove(saltTmp)
		return fmt.Errorf("stage verification file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		os.Remove(saltTmp)
		os.Remove(verifyTmp)
		return fmt.Errorf("commit: %w", err)
	}

	if err := os.Rename(saltTmp, saltFile); err != nil {
		return fmt.Errorf("replace salt: %w", err)
	}
	if err := os.Rename(verifyTmp, verifyFile); err != nil {
		return fmt.Errorf("replace verification file: %w", err)
	}

	crypto.SecureWipe(v.key)
	v.key = newKey
	crypto.SecureWipe(v.auditKey)
	v.auditKey = newAuditKey

	v.log.Info().Msg("master passphrase changed")
	return nil
}

// rewriteColumn passes every row of one encrypted column through fn and
// writes the result back within the same transaction. Rows are collected
// first because a single SQLite connection cannot interleave a scan with
// updates on the same table.
func rewriteColumn(tx *sql.Tx, table, idCol, col string, fn func([]byte) ([]byte, error)) error {
	q := fmt.Sprintf(`SELECT %s, %s FROM %s`, idCol, col, table)
	rows, err := tx.Query(q)
	if err != nil {
		return err
	}
	type pair struct {
		id   any
		blob []byte
	}
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.id, &p.blob); err != nil {
			rows.Close()
			return err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	upd := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`, table, col, idCol)
	for _, p := range pairs {
		blob, err := fn(p.blob)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(upd, blob, p.id); err != nil {
			return err
		}
	}
	return nil
}

// stageFile writes data next to path under a temp name and returns the temp
// path. The caller renames it into place once the database commit succeeds.
func stageFile(path string, data []byte) (string, error) {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, FileMode); err != nil {
		return "", err
	}
	return tmp, nil
}
