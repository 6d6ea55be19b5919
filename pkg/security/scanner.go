// Package security audits vault records for weak, reused, stale, expiring,
// and unprotected credentials, producing findings and an overall health
// score. Scans run off the calling goroutine over an immutable snapshot.
package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/forest6511/passvault/pkg/vault"
)

// Detection thresholds.
const (
	WeakThreshold  = 60
	StaleAfter     = 90 * 24 * time.Hour
	ExpiringWindow = 30 * 24 * time.Hour
)

// FindingType identifies one detection category.
type FindingType string

const (
	FindingWeak       FindingType = "weak_password"
	FindingReused     FindingType = "reused_password"
	FindingStale      FindingType = "stale_password"
	FindingExpiring   FindingType = "expiring"
	FindingMissing2FA FindingType = "missing_2fa"
)

// sensitiveKeywords flags accounts that warrant a second factor when the
// title or URL mentions them.
var sensitiveKeywords = []string{
	"bank", "banking", "finance", "financial", "paypal", "wallet", "crypto",
	"email", "mail", "admin", "root", "vpn", "aws", "cloud", "tax",
	"insurance", "health", "government", "broker", "invest",
}

// Finding is one detected problem.
type Finding struct {
	Type     FindingType `json:"type"`
	RecordID string      `json:"record_id,omitempty"`
	Title    string      `json:"title"`
	Detail   string      `json:"detail"`
}

// Progress reports scan position; Current counts from 1 to Total.
type Progress struct {
	Current int
	Total   int
	Title   string
}

// Report is the outcome of one full scan.
type Report struct {
	Findings         []Finding `json:"findings"`
	Weak             int       `json:"weak"`
	ReusedGroups     int       `json:"reused_groups"`
	Stale            int       `json:"stale"`
	Expiring         int       `json:"expiring"`
	MissingTwoFactor int       `json:"missing_2fa"`
	HealthScore      int       `json:"health_score"`
	Total            int       `json:"total"`
	ScannedAt        time.Time `json:"scanned_at"`
}

// Config tunes a Scanner. The zero value works: Now defaults to the wall
// clock and Logger to a no-op.
type Config struct {
	Logger zerolog.Logger
	Now    time.Time
}

// Scanner audits a point-in-time snapshot of records. The slice is captured
// at construction; later store mutations do not affect a running scan.
type Scanner struct {
	records []*vault.Record
	now     time.Time
	log     zerolog.Logger
}

// NewScanner builds a scanner over the given snapshot.
func NewScanner(records []*vault.Record, cfg Config) *Scanner {
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Scanner{records: records, now: now, log: cfg.Logger}
}

// Run launches the scan on its own goroutine and returns a progress channel
// and a result channel. The progress channel is buffered for the whole scan,
// so a caller that ignores it cannot stall the worker. Both channels are
// closed when the scan ends; a cancelled scan closes the result channel
// without sending a report.
func (s *Scanner) Run(ctx context.Context) (<-chan Progress, <-chan *Report) {
	progress := make(chan Progress, len(s.records))
	result := make(chan *Report, 1)

	go func() {
		defer close(progress)
		defer close(result)

		total := len(s.records)
		rep := &Report{Total: total, ScannedAt: s.now}
		reused := map[string][]*vault.Record{}

		for i, rec := range s.records {
			select {
			case <-ctx.Done():
				s.log.Info().Int("scanned", i).Int("total", total).Msg("audit cancelled")
				return
			default:
			}
			progress <- Progress{Current: i + 1, Total: total, Title: rec.Title}

			s.checkWeak(rep, rec)
			s.checkStale(rep, rec)
			s.checkExpiry(rep, rec)
			s.checkSecondFactor(rep, rec)

			sum := sha256.Sum256([]byte(rec.Password))
			key := hex.EncodeToString(sum[:])
			reused[key] = append(reused[key], rec)
		}

		select {
		case <-ctx.Done():
			s.log.Info().Int("total", total).Msg("audit cancelled")
			return
		default:
		}

		s.collectReuse(rep, reused)
		rep.HealthScore = healthScore(rep)

		s.log.Info().Int("findings", len(rep.Findings)).
			Int("health", rep.HealthScore).Msg("audit complete")
		result <- rep
	}()

	return progress, result
}

func (s *Scanner) checkWeak(rep *Report, rec *vault.Record) {
	if rec.StrengthScore >= WeakThreshold {
		return
	}
	rep.Weak++
	rep.Findings = append(rep.Findings, Finding{
		Type:     FindingWeak,
		RecordID: rec.ID,
		Title:    rec.Title,
		Detail:   fmt.Sprintf("strength score %d is below %d", rec.StrengthScore, WeakThreshold),
	})
}

func (s *Scanner) checkStale(rep *Report, rec *vault.Record) {
	age := s.now.Sub(rec.ModifiedAt)
	if age <= StaleAfter {
		return
	}
	rep.Stale++
	rep.Findings = append(rep.Findings, Finding{
		Type:     FindingStale,
		RecordID: rec.ID,
		Title:    rec.Title,
		Detail:   fmt.Sprintf("password unchanged for %d days", int(age.Hours()/24)),
	})
}

func (s *Scanner) checkExpiry(rep *Report, rec *vault.Record) {
	if rec.ExpiresAt == nil {
		return
	}
	until := rec.ExpiresAt.Sub(s.now)
	if until > ExpiringWindow {
		return
	}
	rep.Expiring++
	detail := fmt.Sprintf("expires in %d days", int(until.Hours()/24))
	if until <= 0 {
		detail = fmt.Sprintf("expired %d days ago", int(-until.Hours()/24))
	}
	rep.Findings = append(rep.Findings, Finding{
		Type:     FindingExpiring,
		RecordID: rec.ID,
		Title:    rec.Title,
		Detail:   detail,
	})
}

func (s *Scanner) checkSecondFactor(rep *Report, rec *vault.Record) {
	if rec.TOTPSecret != "" || !mentionsSensitive(rec) {
		return
	}
	rep.MissingTwoFactor++
	rep.Findings = append(rep.Findings, Finding{
		Type:     FindingMissing2FA,
		RecordID: rec.ID,
		Title:    rec.Title,
		Detail:   "sensitive account without a second factor",
	})
}

func mentionsSensitive(rec *vault.Record) bool {
	haystack := strings.ToLower(rec.Title + " " + rec.URL)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// collectReuse turns the hash grouping into one finding per group of two or
// more records. Groups are emitted largest first for stable output.
func (s *Scanner) collectReuse(rep *Report, groups map[string][]*vault.Record) {
	var shared [][]*vault.Record
	for _, recs := range groups {
		if len(recs) > 1 {
			shared = append(shared, recs)
		}
	}
	sort.Slice(shared, func(i, j int) bool {
		if len(shared[i]) != len(shared[j]) {
			return len(shared[i]) > len(shared[j])
		}
		return shared[i][0].Title < shared[j][0].Title
	})

	for _, recs := range shared {
		rep.ReusedGroups++
		titles := make([]string, len(recs))
		for i, rec := range recs {
			titles[i] = rec.Title
		}
		rep.Findings = append(rep.Findings, Finding{
			Type:   FindingReused,
			Title:  strings.Join(titles, ", "),
			Detail: fmt.Sprintf("%d records share the same password", len(recs)),
		})
	}
}

func healthScore(rep *Report) int {
	score := 100 - 2*rep.Weak - 5*rep.ReusedGroups - rep.Stale - 3*rep.Expiring - 2*rep.MissingTwoFactor
	if score < 0 {
		return 0
	}
	return score
}
