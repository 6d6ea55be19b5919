package vault

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Record is a decrypted secret record as served to callers. The password,
// notes, and TOTP secret are stored encrypted and decrypted on read.
type Record struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Username      string     `json:"username"`
	Password      string     `json:"-"`
	URL           string     `json:"url"`
	Notes         string     `json:"-"`
	Category      string     `json:"category"`
	Tags          []string   `json:"tags"`
	TOTPSecret    string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	ModifiedAt    time.Time  `json:"modified_at"`
	LastUsed      *time.Time `json:"last_used,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Favorite      bool       `json:"favorite"`
	StrengthScore int        `json:"strength_score"`
	Icon          string     `json:"icon"`
}

// HistoryEntry is one prior password of a record, decrypted on read.
// History rows are append-only: one is written immediately before any
// password overwrite, preserving the previous value.
type HistoryEntry struct {
	RecordID  string    `json:"record_id"`
	Password  string    `json:"-"`
	ChangedAt time.Time `json:"changed_at"`
}

// AuditEntry is one row of the append-only audit trail. Entries are never
// mutated after insertion; each carries an HMAC chained to its predecessor
// for tamper evidence.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	RecordID  string    `json:"record_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// Attachment is the metadata of an encrypted file blob tied to a record.
// The data itself is fetched separately via AttachmentData.
type Attachment struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"record_id"`
	Filename  string    `json:"filename"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// AddParams are the caller-supplied fields for a new record.
type AddParams struct {
	Title      string `validate:"required"`
	Username   string
	Password   string `validate:"required"`
	URL        string
	Notes      string
	Category   string
	Tags       []string
	TOTPSecret string
	ExpiresAt  *time.Time
	Icon       string
}

// UpdateParams are the partial fields for an update. Nil pointers leave the
// corresponding field untouched. ClearExpiry removes an existing expiry and
// takes precedence over ExpiresAt.
type UpdateParams struct {
	Title       *string
	Username    *string
	Password    *string
	URL         *string
	Notes       *string
	Category    *string
	Tags        *[]string
	TOTPSecret  *string
	ExpiresAt   *time.Time
	ClearExpiry bool
	Icon        *string
}

// Stats summarizes the vault contents.
type Stats struct {
	Total      int             `json:"total"`
	Favorites  int             `json:"favorites"`
	ByCategory map[string]int  `json:"by_category"`
	Strength   StrengthBuckets `json:"strength"`
}

// StrengthBuckets counts records per strength band:
// weak < 50, medium 50-79, strong >= 80.
type StrengthBuckets struct {
	Weak   int `json:"weak"`
	Medium int `json:"medium"`
	Strong int `json:"strong"`
}

// Store is the operation surface consumed by UI layers. Vault is the single
// file-backed implementation; the interface leaves room for alternative
// backends without touching callers.
type Store interface {
	Add(p AddParams) (string, error)
	Update(id string, p UpdateParams) error
	Delete(id string) error
	Get(id string) (*Record, error)
	GetAll() ([]*Record, error)
	Search(query string) ([]*Record, error)
	ToggleFavorite(id string) error
	MarkUsed(id string) error
	Statistics() (*Stats, error)
	History(id string) ([]HistoryEntry, error)
	AuditLog(limit int) ([]AuditEntry, error)
	ExportCSV(path string) error
	ImportCSV(path string) (int, error)
	ChangeMasterPassphrase(newPassphrase string) error
	Backup(path string) error
	Lock()
}

var _ Store = (*Vault)(nil)

// tagsToText joins tags for storage; tags never contain commas in practice
// and search treats the column as free text anyway.
func tagsToText(tags []string) string {
	return strings.Join(tags, ",")
}

// textToTags splits the stored tags column.
func textToTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// timeToText serializes a timestamp as RFC 3339 for storage.
func timeToText(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// optionalTimeToText serializes an optional timestamp; nil becomes the
// empty string.
func optionalTimeToText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return timeToText(*t)
}

// textToTime parses a stored timestamp.
func textToTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrVaultCorrupted, s)
	}
	return t, nil
}

// textToOptionalTime parses an optional stored timestamp.
func textToOptionalTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := textToTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
