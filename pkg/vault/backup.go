package vault

import (
	"fmt"
	"os"
)

// Backup writes a consistent snapshot of the vault database to path and
// copies the salt and verification files alongside it, so the backup can
// be opened with the same master passphrase. The WAL is checkpointed
// first so the snapshot includes every committed write.
func (v *Vault) Backup(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return err
	}
	if path == v.cfg.Path {
		return fmt.Errorf("%w: backup path matches vault path", ErrValidation)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrVaultAlreadyExists, path)
	}

	if _, err := v.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpoint wal: %w", err)
	}
	if _, err := v.db.Exec(`VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into backup: %w", err)
	}
	if err := os.Chmod(path, FileMode); err != nil {
		return fmt.Errorf("chmod backup: %w", err)
	}

	for _, ext := range []string{SaltExt, VerifyExt} {
		src := replaceExt(v.cfg.Path, ext)
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("read %s: %w", src, err)
		}
		if err := os.WriteFile(replaceExt(path, ext), data, FileMode); err != nil {
			return fmt.Errorf("write backup companion: %w", err)
		}
	}

	tx, err := v.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := v.appendAudit(tx, ActionBackup, "", path); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	v.log.Info().Str("path", path).Msg("backup written")
	return nil
}
