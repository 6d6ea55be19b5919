package vault

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/passvault/pkg/crypto"
)

const testPassphrase = "Tr0ub4dor&3"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	cfg := Config{
		Path:   filepath.Join(t.TempDir(), "vault.db"),
		Logger: zerolog.Nop(),
	}
	v, err := Create(cfg, testPassphrase)
	require.NoError(t, err)
	t.Cleanup(v.Lock)
	return v
}

func sampleParams() AddParams {
	return AddParams{
		Title:    "GitHub",
		Username: "alice",
		Password: "correct-horse-battery-staple",
		URL:      "https://github.com",
		Category: "development",
		Tags:     []string{"work", "git"},
		Notes:    "personal account",
	}
}

func TestCreateAndReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: filepath.Join(dir, "vault.db"), Logger: zerolog.Nop()}

	v, err := Create(cfg, testPassphrase)
	require.NoError(t, err)

	id, err := v.Add(sampleParams())
	require.NoError(t, err)
	v.Lock()
	assert.True(t, v.IsLocked())

	_, err = v.Get(id)
	assert.ErrorIs(t, err, ErrVaultLocked)

	v, err = Open(cfg, testPassphrase)
	require.NoError(t, err)
	defer v.Lock()

	rec, err := v.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "GitHub", rec.Title)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "correct-horse-battery-staple", rec.Password)
	assert.Equal(t, []string{"work", "git"}, rec.Tags)
	assert.Equal(t, "personal account", rec.Notes)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Nil(t, rec.LastUsed)
}

func TestCreateExisting(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: filepath.Join(dir, "vault.db"), Logger: zerolog.Nop()}
	v, err := Create(cfg, testPassphrase)
	require.NoError(t, err)
	v.Lock()

	_, err = Create(cfg, testPassphrase)
	assert.ErrorIs(t, err, ErrVaultAlreadyExists)
}

func TestOpenWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: filepath.Join(dir, "vault.db"), Logger: zerolog.Nop()}
	v, err := Create(cfg, testPassphrase)
	require.NoError(t, err)
	v.Lock()

	_, err = Open(cfg, "not-the-passphrase")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestOpenMissing(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nope.db"), Logger: zerolog.Nop()}
	_, err := Open(cfg, testPassphrase)
	assert.ErrorIs(t, err, ErrVaultNotFound)
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: filepath.Join(dir, "vault.db"), Logger: zerolog.Nop()}
	v, err := Create(cfg, testPassphrase)
	require.NoError(t, err)
	defer v.Lock()

	for _, p := range []string{cfg.Path, saltPath(cfg.Path), verifyPath(cfg.Path)} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), p)
	}
}

func TestAddValidation(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Add(AddParams{Password: "secret"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = v.Add(AddParams{Title: "no password"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdatePasswordWritesHistory(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)

	next := "xK9#mQ2$wP7!zR4@"
	require.NoError(t, v.Update(id, UpdateParams{Password: &next}))

	rec, err := v.Get(id)
	require.NoError(t, err)
	assert.Equal(t, next, rec.Password)

	entries, err := v.History(id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "correct-horse-battery-staple", entries[0].Password)
	assert.Equal(t, id, entries[0].RecordID)
}

func TestUpdateWithoutPasswordSkipsHistory(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)

	title := "GitLab"
	require.NoError(t, v.Update(id, UpdateParams{Title: &title}))

	entries, err := v.History(id)
	require.NoError(t, err)
	assert.Empty(t, entries)

	rec, err := v.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "GitLab", rec.Title)
	assert.Equal(t, "correct-horse-battery-staple", rec.Password)
}

func TestUpdateValidation(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)

	empty := ""
	assert.ErrorIs(t, v.Update(id, UpdateParams{Title: &empty}), ErrValidation)
	assert.ErrorIs(t, v.Update(id, UpdateParams{Password: &empty}), ErrValidation)

	title := "x"
	assert.ErrorIs(t, v.Update("does-not-exist", UpdateParams{Title: &title}), ErrRecordNotFound)
}

func TestDeleteCascades(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)

	next := "another-password-9!"
	require.NoError(t, v.Update(id, UpdateParams{Password: &next}))
	_, err = v.AddAttachment(id, "recovery.txt", []byte("codes"))
	require.NoError(t, err)

	require.NoError(t, v.Delete(id))

	_, err = v.Get(id)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = v.History(id)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	var n int
	require.NoError(t, v.db.QueryRow(`SELECT COUNT(*) FROM history`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, v.db.QueryRow(`SELECT COUNT(*) FROM attachments`).Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, v.Delete(id), ErrRecordNotFound)
}

func TestSearch(t *testing.T) {
	v := newTestVault(t)
	_, err := v.Add(sampleParams())
	require.NoError(t, err)
	_, err = v.Add(AddParams{Title: "Bank", Username: "alice", Password: "p@ss-1", Category: "finance"})
	require.NoError(t, err)
	_, err = v.Add(AddParams{Title: "Forum", Username: "bob", Password: "p@ss-2", Notes: "throwaway github mirror"})
	require.NoError(t, err)

	for _, tc := range []struct {
		query string
		want  int
	}{
		{"github", 2}, // title match plus notes match
		{"ALICE", 2},
		{"finance", 1},
		{"git", 2},
		{"", 3},
		{"nothing-matches", 0},
	} {
		got, err := v.Search(tc.query)
		require.NoError(t, err)
		assert.Len(t, got, tc.want, "query %q", tc.query)
	}
}

func TestGetAllOrder(t *testing.T) {
	v := newTestVault(t)
	first, err := v.Add(AddParams{Title: "first", Password: "p1"})
	require.NoError(t, err)
	second, err := v.Add(AddParams{Title: "second", Password: "p2"})
	require.NoError(t, err)
	require.NoError(t, v.ToggleFavorite(first))

	all, err := v.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0].ID)
	assert.True(t, all[0].Favorite)
	assert.Equal(t, second, all[1].ID)
}

func TestToggleFavoriteAndMarkUsed(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)

	require.NoError(t, v.ToggleFavorite(id))
	rec, err := v.Get(id)
	require.NoError(t, err)
	assert.True(t, rec.Favorite)

	require.NoError(t, v.ToggleFavorite(id))
	rec, err = v.Get(id)
	require.NoError(t, err)
	assert.False(t, rec.Favorite)

	require.NoError(t, v.MarkUsed(id))
	rec, err = v.Get(id)
	require.NoError(t, err)
	require.NotNil(t, rec.LastUsed)
	assert.WithinDuration(t, time.Now(), *rec.LastUsed, 5*time.Second)

	assert.ErrorIs(t, v.ToggleFavorite("missing"), ErrRecordNotFound)
	assert.ErrorIs(t, v.MarkUsed("missing"), ErrRecordNotFound)
}

func TestToggleFavoriteKeepsModifiedAt(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)

	// Backdate the record so any accidental timestamp bump is visible.
	past := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	_, err = v.db.Exec(`UPDATE records SET modified_at = ? WHERE id = ?`, timeToText(past), id)
	require.NoError(t, err)

	require.NoError(t, v.ToggleFavorite(id))
	rec, err := v.Get(id)
	require.NoError(t, err)
	assert.True(t, rec.Favorite)
	assert.True(t, rec.ModifiedAt.Equal(past), "starring a record must not count as an edit")
}

func TestExpiringWithin(t *testing.T) {
	v := newTestVault(t)
	soon := time.Now().AddDate(0, 0, 7)
	later := time.Now().AddDate(0, 0, 120)
	past := time.Now().AddDate(0, 0, -3)

	_, err := v.Add(AddParams{Title: "soon", Password: "p1", ExpiresAt: &soon})
	require.NoError(t, err)
	_, err = v.Add(AddParams{Title: "later", Password: "p2", ExpiresAt: &later})
	require.NoError(t, err)
	_, err = v.Add(AddParams{Title: "expired", Password: "p3", ExpiresAt: &past})
	require.NoError(t, err)
	_, err = v.Add(AddParams{Title: "forever", Password: "p4"})
	require.NoError(t, err)

	recs, err := v.ExpiringWithin(30)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "expired", recs[0].Title)
	assert.Equal(t, "soon", recs[1].Title)
}

func TestUpdateClearsExpiry(t *testing.T) {
	v := newTestVault(t)
	soon := time.Now().AddDate(0, 0, 7)
	p := sampleParams()
	p.ExpiresAt = &soon
	id, err := v.Add(p)
	require.NoError(t, err)

	require.NoError(t, v.Update(id, UpdateParams{ClearExpiry: true}))

	rec, err := v.Get(id)
	require.NoError(t, err)
	assert.Nil(t, rec.ExpiresAt)

	recs, err := v.ExpiringWithin(30)
	require.NoError(t, err)
	assert.Empty(t, recs)

	// ClearExpiry wins when both are set.
	later := time.Now().AddDate(0, 0, 14)
	require.NoError(t, v.Update(id, UpdateParams{ExpiresAt: &later, ClearExpiry: true}))
	rec, err = v.Get(id)
	require.NoError(t, err)
	assert.Nil(t, rec.ExpiresAt)
}

func TestStatistics(t *testing.T) {
	v := newTestVault(t)
	strong := "kT9#mW2$pQ7!xZ4@vB6%"
	_, err := v.Add(AddParams{Title: "a", Password: strong, Category: "work"})
	require.NoError(t, err)
	_, err = v.Add(AddParams{Title: "b", Password: "password", Category: "work"})
	require.NoError(t, err)
	id, err := v.Add(AddParams{Title: "c", Password: strong})
	require.NoError(t, err)
	require.NoError(t, v.ToggleFavorite(id))

	st, err := v.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Favorites)
	assert.Equal(t, 2, st.ByCategory["work"])
	assert.Equal(t, 1, st.ByCategory["uncategorized"])
	assert.Equal(t, 2, st.Strength.Strong)
	assert.Equal(t, 1, st.Strength.Weak)
}

func TestAuditChain(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)
	next := "new-password-42!"
	require.NoError(t, v.Update(id, UpdateParams{Password: &next}))
	require.NoError(t, v.Delete(id))

	entries, err := v.AuditLog(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ActionDelete, entries[0].Action)
	assert.Equal(t, ActionUpdate, entries[1].Action)
	assert.Equal(t, ActionCreate, entries[2].Action)
	assert.Equal(t, id, entries[0].RecordID)

	n, err := v.VerifyAuditChain()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAuditChainDetectsTampering(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)
	next := "new-password-42!"
	require.NoError(t, v.Update(id, UpdateParams{Password: &next}))

	_, err = v.db.Exec(`UPDATE audit_log SET action = 'DELETE' WHERE id = 1`)
	require.NoError(t, err)

	_, err = v.VerifyAuditChain()
	assert.ErrorIs(t, err, ErrAuditChainBroken)
}

func TestAttachments(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)

	payload := []byte("backup codes: 1111 2222 3333")
	attID, err := v.AddAttachment(id, "codes.txt", payload)
	require.NoError(t, err)

	list, err := v.Attachments(id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "codes.txt", list[0].Filename)
	assert.Equal(t, len(payload), list[0].Size)

	data, err := v.AttachmentData(attID)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NoError(t, v.DeleteAttachment(attID))
	_, err = v.AttachmentData(attID)
	assert.ErrorIs(t, err, ErrAttachmentNotFound)

	_, err = v.AddAttachment("missing", "x", []byte("y"))
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestChangeMasterPassphrase(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: filepath.Join(dir, "vault.db"), Logger: zerolog.Nop()}
	v, err := Create(cfg, testPassphrase)
	require.NoError(t, err)

	id, err := v.Add(sampleParams())
	require.NoError(t, err)
	next := "second-password-7$"
	require.NoError(t, v.Update(id, UpdateParams{Password: &next}))
	attID, err := v.AddAttachment(id, "note.txt", []byte("hello"))
	require.NoError(t, err)

	const newPassphrase = "N3w&Improved-Passphrase"
	require.NoError(t, v.ChangeMasterPassphrase(newPassphrase))

	// Still usable in the same session.
	rec, err := v.Get(id)
	require.NoError(t, err)
	assert.Equal(t, next, rec.Password)
	v.Lock()

	_, err = Open(cfg, testPassphrase)
	assert.ErrorIs(t, err, ErrAuth)

	v, err = Open(cfg, newPassphrase)
	require.NoError(t, err)
	defer v.Lock()

	rec, err = v.Get(id)
	require.NoError(t, err)
	assert.Equal(t, next, rec.Password)

	entries, err := v.History(id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "correct-horse-battery-staple", entries[0].Password)

	data, err := v.AttachmentData(attID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	n, err := v.VerifyAuditChain()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestChangeMasterPassphraseSwapsCompanionFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: filepath.Join(dir, "vault.db"), Logger: zerolog.Nop()}
	v, err := Create(cfg, testPassphrase)
	require.NoError(t, err)
	defer v.Lock()

	oldSalt, err := os.ReadFile(saltPath(cfg.Path))
	require.NoError(t, err)

	const newPassphrase = "N3w&Improved-Passphrase"
	require.NoError(t, v.ChangeMasterPassphrase(newPassphrase))

	// Both companions must match the new passphrase once the rotation
	// returns, with no staged temp files left behind.
	salt, err := os.ReadFile(saltPath(cfg.Path))
	require.NoError(t, err)
	assert.Len(t, salt, crypto.SaltLength)
	assert.NotEqual(t, oldSalt, salt)

	verify, err := os.ReadFile(verifyPath(cfg.Path))
	require.NoError(t, err)
	assert.Equal(t, crypto.VerificationHash(newPassphrase), string(verify))

	for _, path := range []string{saltPath(cfg.Path), verifyPath(cfg.Path)} {
		_, err := os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err), "staged file left behind: %s.tmp", path)
	}
}

func TestCSVRoundtrip(t *testing.T) {
	v := newTestVault(t)
	_, err := v.Add(sampleParams())
	require.NoError(t, err)
	_, err = v.Add(AddParams{Title: "Café Wifi", Password: "guést-p@ss", Tags: []string{"travel"}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, v.ExportCSV(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(f).ReadAll()
	f.Close()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	other := newTestVault(t)
	n, err := other.ImportCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := other.Search("café")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "guést-p@ss", recs[0].Password)
	assert.Equal(t, []string{"travel"}, recs[0].Tags)
}

func TestImportCSVRejectsBadHeader(t *testing.T) {
	v := newTestVault(t)
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,secret\nfoo,bar\n"), 0600))

	_, err := v.ImportCSV(path)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBackup(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, v.Backup(backupPath))

	assert.ErrorIs(t, v.Backup(backupPath), ErrVaultAlreadyExists)

	bv, err := Open(Config{Path: backupPath, Logger: zerolog.Nop()}, testPassphrase)
	require.NoError(t, err)
	defer bv.Lock()

	rec, err := bv.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "GitHub", rec.Title)
	assert.Equal(t, "correct-horse-battery-staple", rec.Password)
}

func TestLockedOperationsFail(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Add(sampleParams())
	require.NoError(t, err)
	v.Lock()

	_, err = v.Add(sampleParams())
	assert.ErrorIs(t, err, ErrVaultLocked)
	assert.ErrorIs(t, v.Delete(id), ErrVaultLocked)
	_, err = v.GetAll()
	assert.ErrorIs(t, err, ErrVaultLocked)
	_, err = v.Statistics()
	assert.ErrorIs(t, err, ErrVaultLocked)
	assert.ErrorIs(t, v.ChangeMasterPassphrase("x"), ErrVaultLocked)
}
