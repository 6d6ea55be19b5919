// Package generator produces candidate secrets from a cryptographically
// secure random source.
//
// All randomness comes from crypto/rand. This is a correctness requirement,
// not a style preference: a general-purpose PRNG would make generated
// secrets predictable.
package generator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Character set constants.
const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	// ambiguousChars are visually confusable glyphs dropped when a policy
	// excludes ambiguity: zero/oh and one/ell/eye.
	ambiguousChars = "0O1lI"
)

// Sentinel errors returned by the generator.
var (
	// ErrEmptyCharset indicates the policy enabled no character classes.
	ErrEmptyCharset = errors.New("generator: no character classes enabled")

	// ErrInvalidLength indicates a non-positive requested length.
	ErrInvalidLength = errors.New("generator: length must be positive")
)

// Policy describes a random-mode password request.
type Policy struct {
	// Length is the requested password length. When fewer characters than
	// enabled classes are requested, the length grows to fit one character
	// per class.
	Length int
	// Lower, Upper, Digits, Symbols enable the respective character classes.
	Lower   bool
	Upper   bool
	Digits  bool
	Symbols bool
	// ExcludeAmbiguous drops visually confusable glyphs (0/O, 1/l/I).
	ExcludeAmbiguous bool
}

// DefaultPolicy is a 16-character, all-classes policy with ambiguous
// characters excluded.
func DefaultPolicy() Policy {
	return Policy{
		Length:           16,
		Lower:            true,
		Upper:            true,
		Digits:           true,
		Symbols:          true,
		ExcludeAmbiguous: true,
	}
}

// wordList is the fixed vocabulary for memorable passwords.
var wordList = []string{
	"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot",
	"Golf", "Hotel", "India", "Juliet", "Kilo", "Lima",
	"Mike", "November", "Oscar", "Papa", "Quebec", "Romeo",
	"Sierra", "Tango", "Uniform", "Victor", "Whiskey", "Xray",
	"Yankee", "Zulu", "Dragon", "Phoenix", "Tiger", "Eagle",
}

// separators are the candidate joiners for memorable passwords.
var separators = []string{"-", "_", ".", "!"}

// Random generates a password under the given policy.
//
// At least one character from every enabled class is guaranteed; the
// remainder is drawn from the combined pool and the result is shuffled with
// an unbiased Fisher-Yates pass so the guaranteed characters are not
// positionally predictable.
func Random(p Policy) (string, error) {
	if p.Length <= 0 {
		return "", ErrInvalidLength
	}

	var pool strings.Builder
	var required []byte

	classes := []struct {
		enabled bool
		chars   string
	}{
		{p.Lower, charsetLowercase},
		{p.Upper, charsetUppercase},
		{p.Digits, charsetDigits},
		{p.Symbols, charsetSymbols},
	}

	for _, class := range classes {
		if !class.enabled {
			continue
		}
		chars := class.chars
		if p.ExcludeAmbiguous {
			chars = stripChars(chars, ambiguousChars)
		}
		pool.WriteString(chars)
		c, err := pickChar(chars)
		if err != nil {
			return "", err
		}
		required = append(required, c)
	}

	charset := pool.String()
	if charset == "" {
		return "", ErrEmptyCharset
	}

	length := p.Length
	if length < len(required) {
		length = len(required)
	}

	password := make([]byte, 0, length)
	password = append(password, required...)
	for len(password) < length {
		c, err := pickChar(charset)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}

	if err := shuffle(password); err != nil {
		return "", err
	}
	return string(password), nil
}

// Memorable generates a word-based password: numWords words from the fixed
// list joined by one random separator, with a random two-digit suffix.
func Memorable(numWords int) (string, error) {
	if numWords <= 0 {
		return "", ErrInvalidLength
	}

	words := make([]string, numWords)
	for i := range words {
		n, err := randInt(len(wordList))
		if err != nil {
			return "", err
		}
		words[i] = wordList[n]
	}

	sepIdx, err := randInt(len(separators))
	if err != nil {
		return "", err
	}

	suffix, err := randInt(100)
	if err != nil {
		return "", err
	}

	return strings.Join(words, separators[sepIdx]) + fmt.Sprintf("%02d", suffix), nil
}

// PIN generates length cryptographically random digits.
func PIN(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	digits := make([]byte, length)
	for i := range digits {
		c, err := pickChar(charsetDigits)
		if err != nil {
			return "", err
		}
		digits[i] = c
	}
	return string(digits), nil
}

// shuffle performs an unbiased Fisher-Yates shuffle driven by crypto/rand.
func shuffle(data []byte) error {
	for i := len(data) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return err
		}
		data[i], data[j] = data[j], data[i]
	}
	return nil
}

// pickChar returns one uniformly random character from the set.
func pickChar(set string) (byte, error) {
	if len(set) == 0 {
		return 0, ErrEmptyCharset
	}
	n, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[n], nil
}

// randInt returns a uniform random int in [0, max) from crypto/rand.
func randInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generator: failed to read random source: %w", err)
	}
	return int(n.Int64()), nil
}

// stripChars removes every character of toRemove from s.
func stripChars(s, toRemove string) string {
	var sb strings.Builder
	for _, r := range s {
		if !strings.ContainsRune(toRemove, r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
