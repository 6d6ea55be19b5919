// Package strength provides deterministic password strength analysis.
//
// Analyze is a pure function: the same password always produces the same
// score, so persisted strength scores stay stable across sessions.
package strength

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Score thresholds for the grade mapping.
const (
	GradeExcellent  = "excellent"
	GradeVeryStrong = "very strong"
	GradeStrong     = "strong"
	GradeMedium     = "medium"
	GradeWeak       = "weak"
	GradeVeryWeak   = "very weak"
)

// guessesPerSecond is the assumed offline attack rate for crack-time estimates.
const guessesPerSecond = 1e9

// Analysis is the result of scoring a single password.
type Analysis struct {
	// Score is the composite strength score, clamped to [0, 100].
	Score int `json:"score"`
	// Grade is the human-readable strength grade.
	Grade string `json:"grade"`
	// Issues lists detected problems with the password.
	Issues []string `json:"issues"`
	// Suggestions lists actionable improvements.
	Suggestions []string `json:"suggestions"`
	// Entropy is the estimated search-space size in bits
	// (length * log2(charset size)).
	Entropy float64 `json:"entropy"`
	// CrackTime is a human-readable brute-force time estimate.
	CrackTime string `json:"crack_time"`
	// Length is the password length in runes.
	Length int `json:"length"`
	// Complexity is the number of character classes present (0-4).
	Complexity int `json:"complexity"`
	// Diversity is the unique-character ratio (unique chars / length).
	Diversity float64 `json:"diversity"`
}

// commonPasswords is the exact-match dictionary of passwords that are
// effectively public knowledge.
var commonPasswords = map[string]bool{
	"123456": true, "password": true, "12345678": true, "qwerty": true,
	"123456789": true, "12345": true, "1234": true, "111111": true,
	"1234567": true, "dragon": true, "123123": true, "baseball": true,
	"iloveyou": true, "trustno1": true, "1234567890": true, "sunshine": true,
	"master": true, "welcome": true, "shadow": true, "ashley": true,
	"football": true, "jesus": true, "michael": true, "ninja": true,
	"mustang": true, "password1": true, "admin": true, "root": true,
}

// dictionaryWords are short words whose presence weakens a password.
var dictionaryWords = []string{"love", "admin", "user", "test", "pass", "word"}

// keyboardWalks are common keyboard-row substrings.
var keyboardWalks = []string{"qwerty", "asdfgh", "zxcvbn"}

// Analyze scores an arbitrary password string on a 0-100 scale.
//
// The score is composed additively: a tiered length bonus, character-class
// diversity, an entropy bonus, a diversity-ratio adjustment, and penalties
// for weak patterns, common passwords, and dictionary words.
func Analyze(password string) Analysis {
	if password == "" {
		return Analysis{
			Score:       0,
			Grade:       GradeVeryWeak,
			Issues:      []string{"password is empty"},
			Suggestions: []string{"enter a password"},
			CrackTime:   "instant",
		}
	}

	var score float64
	var issues, suggestions []string

	// Tiered length bonus. Length is counted in runes so multibyte
	// characters do not inflate it.
	length := utf8.RuneCountInString(password)
	switch {
	case length >= 20:
		score += 35
	case length >= 16:
		score += 30
	case length >= 12:
		score += 20
	case length >= 8:
		score += 10
	default:
		issues = append(issues, fmt.Sprintf("password is too short (%d characters)", length))
		suggestions = append(suggestions, "use at least 12 characters, 16+ recommended")
		score += float64(length)
	}

	// Character-class diversity.
	hasLower := strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz")
	hasUpper := strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	hasDigit := strings.ContainsAny(password, "0123456789")
	hasSpecial := containsSpecial(password)

	complexity := 0
	for _, present := range []bool{hasLower, hasUpper, hasDigit, hasSpecial} {
		if present {
			complexity++
		}
	}
	score += float64(complexity) * 12
	if complexity == 4 {
		score += 10
	}

	if !hasLower && !hasUpper {
		issues = append(issues, "no letters")
		suggestions = append(suggestions, "add upper and lower case letters")
	}
	if !hasUpper {
		suggestions = append(suggestions, "add uppercase letters")
	}
	if !hasDigit {
		suggestions = append(suggestions, "add digits")
	}
	if !hasSpecial {
		suggestions = append(suggestions, "add special characters (!@#$%...)")
	}

	// Weak pattern penalty, applied at most once.
	if hasWeakPattern(password) {
		issues = append(issues, "contains a predictable character pattern")
		score -= 15
	}

	// Common-password dictionary.
	if commonPasswords[strings.ToLower(password)] {
		issues = append(issues, "matches a well-known common password")
		suggestions = append(suggestions, "choose a completely different password")
		score -= 40
	}

	// Dictionary-word substring, applied at most once.
	if length >= 4 {
		lower := strings.ToLower(password)
		for _, word := range dictionaryWords {
			if strings.Contains(lower, word) {
				issues = append(issues, "contains a common dictionary word")
				score -= 10
				break
			}
		}
	}

	// Entropy bonus.
	charsetSize := 0
	if hasLower {
		charsetSize += 26
	}
	if hasUpper {
		charsetSize += 26
	}
	if hasDigit {
		charsetSize += 10
	}
	if hasSpecial {
		charsetSize += 32
	}
	var entropy float64
	if charsetSize > 0 {
		entropy = float64(length) * math.Log2(float64(charsetSize))
		score += math.Min(entropy/3, 20)
	}

	// Diversity-ratio adjustment.
	unique := make(map[rune]bool, length)
	for _, r := range password {
		unique[r] = true
	}
	diversity := float64(len(unique)) / float64(length)
	if diversity > 0.8 {
		score += 5
	} else if diversity < 0.5 {
		issues = append(issues, "too many repeated characters")
		score -= 5
	}

	score = math.Max(0, math.Min(100, score))

	return Analysis{
		Score:       int(score),
		Grade:       gradeFor(int(score)),
		Issues:      issues,
		Suggestions: suggestions,
		Entropy:     entropy,
		CrackTime:   estimateCrackTime(entropy),
		Length:      length,
		Complexity:  complexity,
		Diversity:   diversity,
	}
}

// gradeFor maps a score to its grade label.
func gradeFor(score int) string {
	switch {
	case score >= 90:
		return GradeExcellent
	case score >= 75:
		return GradeVeryStrong
	case score >= 60:
		return GradeStrong
	case score >= 45:
		return GradeMedium
	case score >= 25:
		return GradeWeak
	default:
		return GradeVeryWeak
	}
}

// estimateCrackTime estimates the average brute-force time for the given
// entropy at guessesPerSecond, formatted for humans.
func estimateCrackTime(entropy float64) string {
	if entropy == 0 {
		return "instant"
	}

	// Average case: half the search space.
	seconds := math.Exp2(entropy) / (2 * guessesPerSecond)

	switch {
	case seconds < 1:
		return "less than a second"
	case seconds < 60:
		return fmt.Sprintf("%d seconds", int(seconds))
	case seconds < 3600:
		return fmt.Sprintf("%d minutes", int(seconds/60))
	case seconds < 86400:
		return fmt.Sprintf("%d hours", int(seconds/3600))
	case seconds < 31536000:
		return fmt.Sprintf("%d days", int(seconds/86400))
	case seconds < 31536000*1000:
		return fmt.Sprintf("%d years", int(seconds/31536000))
	case seconds < 31536000*1e6:
		return fmt.Sprintf("%d thousand years", int(seconds/31536000/1000))
	default:
		return "billions of years"
	}
}

// containsSpecial reports whether the password has at least one character
// outside the letter and digit classes.
func containsSpecial(password string) bool {
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return true
		}
	}
	return false
}

// hasWeakPattern reports whether the password contains a repeated-character
// run, a sequential digit or letter run, or a keyboard-walk substring.
// Detection is hand-rolled: Go's regexp has no backreferences for the
// repeated-run case.
func hasWeakPattern(password string) bool {
	lower := strings.ToLower(password)

	// Repeated character run of three or more.
	run := 1
	for i := 1; i < len(lower); i++ {
		if lower[i] == lower[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}

	// Sequential runs of three digits or letters (e.g. "123", "abc").
	for i := 0; i+2 < len(lower); i++ {
		a, b, c := lower[i], lower[i+1], lower[i+2]
		digits := a >= '0' && a <= '9' && b >= '0' && b <= '9' && c >= '0' && c <= '9'
		letters := a >= 'a' && a <= 'z' && b >= 'a' && b <= 'z' && c >= 'a' && c <= 'z'
		if (digits || letters) && b == a+1 && c == b+1 {
			return true
		}
	}
	// The "890" wrap is also a sequential digit run.
	if strings.Contains(lower, "890") {
		return true
	}

	for _, walk := range keyboardWalks {
		if strings.Contains(lower, walk) {
			return true
		}
	}

	return false
}
