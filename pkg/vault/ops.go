package vault

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/strength"
)

const recordColumns = `id, title, username, password, url, notes, category, tags,
	totp_secret, created_at, modified_at, last_used, expires_at, is_favorite,
	strength_score, icon`

// Add validates and inserts a new record, returning its generated id.
// The insert, the audit entry, and the index bookkeeping commit atomically.
func (v *Vault) Add(p AddParams) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return "", err
	}
	if err := v.validate.Struct(p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	id := uuid.NewString()
	encPassword, err := crypto.Encrypt([]byte(p.Password), v.key)
	if err != nil {
		return "", fmt.Errorf("encrypt password: %w", err)
	}
	encNotes, err := crypto.Encrypt([]byte(p.Notes), v.key)
	if err != nil {
		return "", fmt.Errorf("encrypt notes: %w", err)
	}
	encTOTP, err := crypto.Encrypt([]byte(p.TOTPSecret), v.key)
	if err != nil {
		return "", fmt.Errorf("encrypt totp secret: %w", err)
	}
	score := strength.Analyze(p.Password).Score
	ts := now()

	tx, err := v.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id, p.Title, p.Username, encPassword, p.URL, encNotes, p.Category,
		tagsToText(p.Tags), encTOTP, timeToText(ts), timeToText(ts),
		sql.NullString{}, nullableText(optionalTimeToText(p.ExpiresAt)),
		score, p.Icon)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	if err := v.appendAudit(tx, ActionCreate, id, p.Title); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	v.log.Info().Str("id", id).Str("title", p.Title).Msg("record added")
	return id, nil
}

// Update applies the non-nil fields of p to an existing record. If the
// password changes, the previous ciphertext is snapshotted into history
// inside the same transaction and the strength score is recomputed.
func (v *Vault) Update(id string, p UpdateParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return err
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if p.Password != nil && *p.Password == "" {
		return fmt.Errorf("%w: password must not be empty", ErrValidation)
	}

	tx, err := v.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var oldPassword []byte
	err = tx.QueryRow(`SELECT password FROM records WHERE id = ?`, id).Scan(&oldPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	ts := now()
	sets := []string{"modified_at = ?"}
	args := []any{timeToText(ts)}
	set := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Username != nil {
		set("username", *p.Username)
	}
	if p.Password != nil {
		// Snapshot the outgoing ciphertext verbatim; no decrypt needed.
		_, err = tx.Exec(`INSERT INTO history (record_id, password, changed_at)
			VALUES (?, ?, ?)`, id, oldPassword, timeToText(ts))
		if err != nil {
			return fmt.Errorf("snapshot history: %w", err)
		}
		enc, err := crypto.Encrypt([]byte(*p.Password), v.key)
		if err != nil {
			return fmt.Errorf("encrypt password: %w", err)
		}
		set("password", enc)
		set("strength_score", strength.Analyze(*p.Password).Score)
	}
	if p.URL != nil {
		set("url", *p.URL)
	}
	if p.Notes != nil {
		enc, err := crypto.Encrypt([]byte(*p.Notes), v.key)
		if err != nil {
			return fmt.Errorf("encrypt notes: %w", err)
		}
		set("notes", enc)
	}
	if p.Category != nil {
		set("category", *p.Category)
	}
	if p.Tags != nil {
		set("tags", tagsToText(*p.Tags))
	}
	if p.TOTPSecret != nil {
		enc, err := crypto.Encrypt([]byte(*p.TOTPSecret), v.key)
		if err != nil {
			return fmt.Errorf("encrypt totp secret: %w", err)
		}
		set("totp_secret", enc)
	}
	if p.ClearExpiry {
		set("expires_at", nil)
	} else if p.ExpiresAt != nil {
		set("expires_at", timeToText(*p.ExpiresAt))
	}
	if p.Icon != nil {
		set("icon", *p.Icon)
	}

	args = append(args, id)
	_, err = tx.Exec(`UPDATE records SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if err := v.appendAudit(tx, ActionUpdate, id, ""); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	v.log.Info().Str("id", id).Msg("record updated")
	return nil
}

// Delete removes a record. History rows and attachments go with it via
// cascading foreign keys; audit entries stay.
func (v *Vault) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return err
	}

	tx, err := v.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	if err := v.appendAudit(tx, ActionDelete, id, ""); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	v.log.Info().Str("id", id).Msg("record deleted")
	return nil
}

// Get returns a single record, fully decrypted.
func (v *Vault) Get(id string) (*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.locked(); err != nil {
		return nil, err
	}
	row := v.db.QueryRow(`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := v.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return rec, err
}

// GetAll returns every record, favorites first, then most recently modified.
func (v *Vault) GetAll() ([]*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.locked(); err != nil {
		return nil, err
	}
	rows, err := v.db.Query(`SELECT ` + recordColumns + ` FROM records
		ORDER BY is_favorite DESC, modified_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	return v.scanRecords(rows)
}

// Search returns records whose title, username, URL, category, tags, or
// decrypted notes contain the query, case-insensitively. An empty query
// matches everything.
func (v *Vault) Search(query string) ([]*Record, error) {
	all, err := v.GetAll()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}
	matched := make([]*Record, 0, len(all))
	for _, rec := range all {
		if recordMatches(rec, q) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func recordMatches(rec *Record, q string) bool {
	fields := []string{rec.Title, rec.Username, rec.URL, rec.Category, rec.Notes}
	fields = append(fields, rec.Tags...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// ToggleFavorite flips the favorite flag on a record. Like MarkUsed it
// leaves modified_at alone: the flag is display metadata, and bumping the
// timestamp would reset stale-password detection.
func (v *Vault) ToggleFavorite(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return err
	}
	res, err := v.db.Exec(`UPDATE records SET is_favorite = 1 - is_favorite WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("toggle favorite: %w", err)
	}
	return requireRow(res)
}

// MarkUsed stamps a record's last-used time. Deliberately does not touch
// modified_at: reads are not edits.
func (v *Vault) MarkUsed(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return err
	}
	res, err := v.db.Exec(`UPDATE records SET last_used = ? WHERE id = ?`,
		timeToText(now()), id)
	if err != nil {
		return fmt.Errorf("mark used: %w", err)
	}
	return requireRow(res)
}

// ExpiringWithin returns records whose expiry falls on or before the cutoff,
// including already expired ones. Records without an expiry are skipped.
func (v *Vault) ExpiringWithin(days int) ([]*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.locked(); err != nil {
		return nil, err
	}
	cutoff := now().AddDate(0, 0, days)
	rows, err := v.db.Query(`SELECT `+recordColumns+` FROM records
		WHERE expires_at IS NOT NULL AND expires_at != '' AND expires_at <= ?
		ORDER BY expires_at ASC`, timeToText(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query expiring: %w", err)
	}
	defer rows.Close()
	return v.scanRecords(rows)
}

// History returns the prior passwords of a record, newest first.
func (v *Vault) History(id string) ([]HistoryEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.locked(); err != nil {
		return nil, err
	}
	var exists int
	err := v.db.QueryRow(`SELECT COUNT(*) FROM records WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check record: %w", err)
	}
	if exists == 0 {
		return nil, ErrRecordNotFound
	}
	rows, err := v.db.Query(`SELECT record_id, password, changed_at
		FROM history WHERE record_id = ? ORDER BY changed_at DESC, id DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var enc []byte
		var changed string
		if err := rows.Scan(&e.RecordID, &enc, &changed); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		plain, err := crypto.Decrypt(enc, v.key)
		if err != nil {
			return nil, fmt.Errorf("decrypt history entry: %w", err)
		}
		e.Password = string(plain)
		if e.ChangedAt, err = textToTime(changed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Statistics summarizes the vault: totals, favorites, per-category counts,
// and strength bands.
func (v *Vault) Statistics() (*Stats, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.locked(); err != nil {
		return nil, err
	}
	st := &Stats{ByCategory: map[string]int{}}
	rows, err := v.db.Query(`SELECT category, is_favorite, strength_score FROM records`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var fav, score int
		if err := rows.Scan(&category, &fav, &score); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.Total++
		if fav != 0 {
			st.Favorites++
		}
		if category == "" {
			category = "uncategorized"
		}
		st.ByCategory[category]++
		switch {
		case score >= 80:
			st.Strength.Strong++
		case score >= 50:
			st.Strength.Medium++
		default:
			st.Strength.Weak++
		}
	}
	return st, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (v *Vault) scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var encPassword, encNotes, encTOTP []byte
	var tags, created, modified string
	var lastUsed, expires sql.NullString
	var fav int
	err := row.Scan(&rec.ID, &rec.Title, &rec.Username, &encPassword, &rec.URL,
		&encNotes, &rec.Category, &tags, &encTOTP, &created, &modified,
		&lastUsed, &expires, &fav, &rec.StrengthScore, &rec.Icon)
	if err != nil {
		return nil, err
	}

	plain, err := crypto.Decrypt(encPassword, v.key)
	if err != nil {
		return nil, fmt.Errorf("decrypt password: %w", err)
	}
	rec.Password = string(plain)
	if plain, err = crypto.Decrypt(encNotes, v.key); err != nil {
		return nil, fmt.Errorf("decrypt notes: %w", err)
	}
	rec.Notes = string(plain)
	if plain, err = crypto.Decrypt(encTOTP, v.key); err != nil {
		return nil, fmt.Errorf("decrypt totp secret: %w", err)
	}
	rec.TOTPSecret = string(plain)

	rec.Tags = textToTags(tags)
	rec.Favorite = fav != 0
	if rec.CreatedAt, err = textToTime(created); err != nil {
		return nil, err
	}
	if rec.ModifiedAt, err = textToTime(modified); err != nil {
		return nil, err
	}
	if rec.LastUsed, err = textToOptionalTime(lastUsed); err != nil {
		return nil, err
	}
	if rec.ExpiresAt, err = textToOptionalTime(expires); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (v *Vault) scanRecords(rows *sql.Rows) ([]*Record, error) {
	var recs []*Record
	for rows.Next() {
		rec, err := v.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
