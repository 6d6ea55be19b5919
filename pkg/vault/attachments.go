package vault

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/forest6511/passvault/pkg/crypto"
)

// MaxAttachmentSize caps attachment payloads; blobs live inline in the
// database and oversized files would bloat it.
const MaxAttachmentSize = 10 << 20

// AddAttachment encrypts data and stores it against a record, returning the
// attachment id. Size is recorded as the plaintext length.
func (v *Vault) AddAttachment(recordID, filename string, data []byte) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return "", err
	}
	if filename == "" {
		return "", fmt.Errorf("%w: filename must not be empty", ErrValidation)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: attachment is empty", ErrValidation)
	}
	if len(data) > MaxAttachmentSize {
		return "", fmt.Errorf("%w: attachment exceeds %d bytes", ErrValidation, MaxAttachmentSize)
	}

	var exists int
	if err := v.db.QueryRow(`SELECT COUNT(*) FROM records WHERE id = ?`, recordID).Scan(&exists); err != nil {
		return "", fmt.Errorf("check record: %w", err)
	}
	if exists == 0 {
		return "", ErrRecordNotFound
	}

	enc, err := crypto.Encrypt(data, v.key)
	if err != nil {
		return "", fmt.Errorf("encrypt attachment: %w", err)
	}
	id := uuid.NewString()
	_, err = v.db.Exec(`INSERT INTO attachments (id, record_id, filename, data, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, recordID, filename, enc, len(data), timeToText(now()))
	if err != nil {
		return "", fmt.Errorf("insert attachment: %w", err)
	}

	v.log.Info().Str("record_id", recordID).Str("filename", filename).
		Int("size", len(data)).Msg("attachment added")
	return id, nil
}

// Attachments lists a record's attachment metadata, oldest first.
func (v *Vault) Attachments(recordID string) ([]Attachment, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.locked(); err != nil {
		return nil, err
	}
	rows, err := v.db.Query(`SELECT id, record_id, filename, size, created_at
		FROM attachments WHERE record_id = ? ORDER BY created_at ASC, id ASC`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	var list []Attachment
	for rows.Next() {
		var a Attachment
		var created string
		if err := rows.Scan(&a.ID, &a.RecordID, &a.Filename, &a.Size, &created); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		if a.CreatedAt, err = textToTime(created); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// AttachmentData returns the decrypted payload of one attachment.
func (v *Vault) AttachmentData(id string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.locked(); err != nil {
		return nil, err
	}
	var enc []byte
	err := v.db.QueryRow(`SELECT data FROM attachments WHERE id = ?`, id).Scan(&enc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load attachment: %w", err)
	}
	plain, err := crypto.Decrypt(enc, v.key)
	if err != nil {
		return nil, fmt.Errorf("decrypt attachment: %w", err)
	}
	return plain, nil
}

// DeleteAttachment removes one attachment.
func (v *Vault) DeleteAttachment(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return err
	}
	res, err := v.db.Exec(`DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}
