package vault

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Audit actions recorded in the tamper-evident log.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionRekey  = "REKEY"
	ActionBackup = "BACKUP"
	ActionImport = "IMPORT"
	ActionExport = "EXPORT"
)

// ErrAuditChainBroken reports a gap or mutation in the audit log.
var ErrAuditChainBroken = errors.New("audit chain broken")

// auditMAC computes the HMAC for one entry. The previous entry's MAC is
// folded in, so rewriting any row invalidates every row after it.
func auditMAC(key []byte, prevHash, action, recordID, timestamp, details string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(prevHash))
	mac.Write([]byte{0})
	mac.Write([]byte(action))
	mac.Write([]byte{0})
	mac.Write([]byte(recordID))
	mac.Write([]byte{0})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{0})
	mac.Write([]byte(details))
	return hex.EncodeToString(mac.Sum(nil))
}

// appendAudit writes one audit row inside the caller's transaction, chained
// to the current tail. Callers hold the write lock.
func (v *Vault) appendAudit(tx *sql.Tx, action, recordID, details string) error {
	return appendAuditKeyed(tx, v.auditKey, action, recordID, details)
}

func appendAuditKeyed(tx *sql.Tx, key []byte, action, recordID, details string) error {
	var prevHash string
	err := tx.QueryRow(`SELECT hmac FROM audit_log ORDER BY id DESC LIMIT 1`).Scan(&prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read audit tail: %w", err)
	}
	ts := timeToText(now())
	mac := auditMAC(key, prevHash, action, recordID, ts, details)
	_, err = tx.Exec(`INSERT INTO audit_log (action, record_id, timestamp, details, prev_hash, hmac)
		VALUES (?, ?, ?, ?, ?, ?)`, action, recordID, ts, details, prevHash, mac)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// rewriteAuditChain re-signs every existing audit row with key, preserving
// order and content. Used when the signing key rotates.
func rewriteAuditChain(tx *sql.Tx, key []byte) error {
	rows, err := tx.Query(`SELECT id, action, record_id, timestamp, details
		FROM audit_log ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("query audit log: %w", err)
	}
	type entry struct {
		id                            int64
		action, recordID, ts, details string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.action, &e.recordID, &e.ts, &e.details); err != nil {
			rows.Close()
			return fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	tail := ""
	for _, e := range entries {
		mac := auditMAC(key, tail, e.action, e.recordID, e.ts, e.details)
		_, err := tx.Exec(`UPDATE audit_log SET prev_hash = ?, hmac = ? WHERE id = ?`,
			tail, mac, e.id)
		if err != nil {
			return fmt.Errorf("rewrite audit entry: %w", err)
		}
		tail = mac
	}
	return nil
}

// AuditLog returns the most recent entries, newest first. limit <= 0 means
// all entries.
func (v *Vault) AuditLog(limit int) ([]AuditEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.locked(); err != nil {
		return nil, err
	}
	q := `SELECT id, action, record_id, timestamp, details FROM audit_log ORDER BY id DESC`
	if limit > 0 {
		q += ` LIMIT ` + strconv.Itoa(limit)
	}
	rows, err := v.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.Action, &e.RecordID, &ts, &e.Details); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Timestamp, err = textToTime(ts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// VerifyAuditChain walks the full log in insertion order and recomputes
// every HMAC. Returns the number of verified entries, or
// ErrAuditChainBroken at the first mismatch.
func (v *Vault) VerifyAuditChain() (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.locked(); err != nil {
		return 0, err
	}
	rows, err := v.db.Query(`SELECT id, action, record_id, timestamp, details, prev_hash, hmac
		FROM audit_log ORDER BY id ASC`)
	if err != nil {
		return 0, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	verified := 0
	tail := ""
	for rows.Next() {
		var id int64
		var action, recordID, ts, details, prevHash, mac string
		if err := rows.Scan(&id, &action, &recordID, &ts, &details, &prevHash, &mac); err != nil {
			return verified, fmt.Errorf("scan audit entry: %w", err)
		}
		if prevHash != tail {
			return verified, fmt.Errorf("%w: entry %d links to wrong predecessor", ErrAuditChainBroken, id)
		}
		want := auditMAC(v.auditKey, prevHash, action, recordID, ts, details)
		if !hmac.Equal([]byte(want), []byte(mac)) {
			return verified, fmt.Errorf("%w: entry %d fails verification", ErrAuditChainBroken, id)
		}
		tail = mac
		verified++
	}
	return verified, rows.Err()
}
