package vault

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var csvHeader = []string{"title", "username", "password", "url", "category", "tags", "notes"}

// ExportCSV writes every record as plaintext CSV. The file is created with
// owner-only permissions; it still holds secrets in the clear, which the
// caller is expected to have warned about.
func (v *Vault) ExportCSV(path string) error {
	records, err := v.GetAll()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.Title, rec.Username, rec.Password, rec.URL,
			rec.Category, strings.Join(rec.Tags, ";"), rec.Notes}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}

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
	if err := v.appendAudit(tx, ActionExport, "", fmt.Sprintf("%d records", len(records))); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	v.log.Info().Int("count", len(records)).Str("path", path).Msg("exported csv")
	return nil
}

// ImportCSV reads records from a CSV file with the same columns ExportCSV
// writes and adds them to the vault. Text fields are NFC-normalized so
// that imports from other tools compare and search consistently.
// Returns the number of imported records.
func (v *Vault) ImportCSV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	rows, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: empty file", ErrValidation)
	}
	if !headerMatches(rows[0]) {
		return 0, fmt.Errorf("%w: expected header %q", ErrValidation, strings.Join(csvHeader, ","))
	}

	imported := 0
	for i, row := range rows[1:] {
		p := AddParams{
			Title:    norm.NFC.String(strings.TrimSpace(row[0])),
			Username: norm.NFC.String(row[1]),
			Password: row[2],
			URL:      row[3],
			Category: norm.NFC.String(row[4]),
			Notes:    norm.NFC.String(row[6]),
		}
		if row[5] != "" {
			p.Tags = strings.Split(norm.NFC.String(row[5]), ";")
		}
		if _, err := v.Add(p); err != nil {
			return imported, fmt.Errorf("row %d: %w", i+2, err)
		}
		imported++
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.locked(); err != nil {
		return imported, err
	}
	tx, err := v.db.Begin()
	if err != nil {
		return imported, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := v.appendAudit(tx, ActionImport, "", fmt.Sprintf("%d records from %s", imported, path)); err != nil {
		return imported, err
	}
	if err := tx.Commit(); err != nil {
		return imported, fmt.Errorf("commit: %w", err)
	}

	v.log.Info().Int("count", imported).Str("path", path).Msg("imported csv")
	return imported, nil
}

func headerMatches(got []string) bool {
	if len(got) != len(csvHeader) {
		return false
	}
	for i, col := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(got[i]), col) {
			return false
		}
	}
	return true
}
