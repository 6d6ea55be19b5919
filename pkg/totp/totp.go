// Package totp implements RFC 6238 time-based one-time passwords.
//
// Codes are six digits, derived with HMAC-SHA1 and RFC 4226 dynamic
// truncation, and verified with a constant-time comparison.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults per RFC 6238.
const (
	// DefaultTimeStep is the code validity window in seconds.
	DefaultTimeStep = 30

	// SecretLength is the raw secret size in bytes (160 bits for SHA-1).
	SecretLength = 20

	// Digits is the code length.
	Digits = 6
)

// ErrInvalidSecret indicates the secret is not valid base32.
var ErrInvalidSecret = errors.New("totp: invalid base32 secret")

// GenerateSecret returns a new random shared secret, base32-encoded.
// 20 random bytes encode to 32 base32 characters with no padding.
func GenerateSecret() (string, error) {
	raw := make([]byte, SecretLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("totp: failed to generate secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// Code returns the six-digit code for the given secret at time t.
//
// The counter is floor(unix/timeStep); the code is the RFC 4226 dynamic
// truncation of HMAC-SHA1(secret, counter) modulo 10^6, zero-padded.
func Code(secret string, t time.Time, timeStep int) (string, error) {
	if timeStep <= 0 {
		timeStep = DefaultTimeStep
	}
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	counter := uint64(t.Unix()) / uint64(timeStep)
	return hotp(key, counter), nil
}

// Verify reports whether candidate matches the code for any counter within
// window steps of the current one, tolerating clock drift in either
// direction. The comparison is constant-time to avoid a timing side-channel.
func Verify(secret, candidate string, t time.Time, window, timeStep int) (bool, error) {
	if timeStep <= 0 {
		timeStep = DefaultTimeStep
	}
	if window < 0 {
		window = 0
	}
	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}

	counter := int64(t.Unix()) / int64(timeStep)
	matched := false
	for i := -window; i <= window; i++ {
		c := counter + int64(i)
		if c < 0 {
			continue
		}
		expected := hotp(key, uint64(c))
		// Check every candidate counter so verification time does not
		// depend on which step matched.
		if subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1 {
			matched = true
		}
	}
	return matched, nil
}

// Remaining returns the seconds left in the current time step.
// Display-only; it has no security relevance.
func Remaining(t time.Time, timeStep int) int {
	if timeStep <= 0 {
		timeStep = DefaultTimeStep
	}
	return timeStep - int(t.Unix()%int64(timeStep))
}

// URI returns the otpauth provisioning URI understood by third-party
// authenticator apps. The exact query shape is a compatibility requirement.
func URI(secret, account, issuer string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s", issuer, account, secret, issuer)
}

// hotp computes the RFC 4226 six-digit code for one counter value.
func hotp(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation: 4 bytes at the offset given by the low nibble of
	// the last byte, with the top bit masked.
	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", code%1000000)
}

// decodeSecret normalizes and base32-decodes a shared secret. Spaces and
// newlines are stripped and the input is uppercased, matching how secrets
// are commonly transcribed.
func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.NewReplacer(" ", "", "\n", "", "\r", "").Replace(secret))
	normalized = strings.TrimRight(normalized, "=")
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil {
		return nil, ErrInvalidSecret
	}
	return key, nil
}
