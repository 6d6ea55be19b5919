// Package crypto provides the cryptographic primitives for passvault.
//
// This package implements PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM
// authenticated encryption with transparent zlib compression.
//
// # Security Features
//
//   - PBKDF2-HMAC-SHA256 key derivation (200,000 iterations)
//   - AES-256-GCM authenticated encryption
//   - Cryptographically secure random nonce and salt generation
//   - Secure memory wiping for sensitive data
//
// # Example Usage
//
//	// Derive a key from a master passphrase
//	salt, _ := crypto.GenerateSalt()
//	key := crypto.DeriveKey([]byte("passphrase"), salt)
//
//	// Encrypt data (nonce is prepended to the returned blob)
//	blob, err := crypto.Encrypt(plaintext, key)
//
//	// Decrypt data
//	plaintext, err := crypto.Decrypt(blob, key)
//
//	// Securely wipe sensitive data
//	crypto.SecureWipe(key)
package crypto

import (
	"bytes"
	"compress/zlib"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation and cipher parameters.
const (
	// Iterations is the PBKDF2 iteration count. It is a policy constant, not
	// configurable at call sites, so derivation cost stays predictable.
	Iterations = 200000

	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// SaltLength is the length of the per-vault salt in bytes.
	SaltLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrCiphertextTooShort indicates the blob is shorter than nonce plus GCM tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")

	// ErrDecryptionFailed indicates authentication tag verification failed.
	// A tampered or wrong-key blob always fails with this error; decryption
	// never returns empty or garbage plaintext.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")
)

// DeriveKey derives a 256-bit encryption key from a passphrase using
// PBKDF2-HMAC-SHA256 with the package iteration count.
//
// The salt should be SaltLength bytes of cryptographically secure random data
// (use GenerateSalt). The result is deterministic for a fixed (passphrase, salt)
// pair and suitable for AES-256.
func DeriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, Iterations, KeyLength, sha256.New)
}

// Encrypt compresses plaintext with zlib and seals it with AES-256-GCM.
//
// The random 12-byte nonce is prepended to the ciphertext so the result is a
// single self-describing blob. Empty input encrypts to an empty blob; this is
// explicit behavior, not an error, so optional fields round-trip cleanly.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(plaintext) == 0 {
		return nil, nil
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(plaintext); err != nil {
		return nil, fmt.Errorf("crypto: failed to compress plaintext: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("crypto: failed to compress plaintext: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	// Seal appends the ciphertext and tag after the nonce, producing one blob.
	return gcm.Seal(nonce, nonce, compressed.Bytes(), nil), nil
}

// Decrypt opens a blob produced by Encrypt and decompresses the plaintext.
//
// The authentication tag is verified before any data is returned. A tampered
// or wrong-key blob fails with ErrDecryptionFailed. An empty blob decrypts to
// empty plaintext, mirroring Encrypt.
func Decrypt(blob, key []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(blob) == 0 {
		return nil, nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	if len(blob) < NonceLength+gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	nonce := blob[:NonceLength]
	ciphertext := blob[NonceLength:]

	compressed, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to decompress plaintext: %w", err)
	}
	defer zr.Close()

	plaintext, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to decompress plaintext: %w", err)
	}
	return plaintext, nil
}

// VerificationHash returns a hex-encoded SHA-256 digest of the passphrase.
//
// It is persisted beside the vault and used only to reject a wrong passphrase
// cheaply before any key derivation or decryption is attempted. It is never
// reused as an encryption key.
func VerificationHash(passphrase string) string {
	sum := sha256.Sum256([]byte(passphrase))
	return hex.EncodeToString(sum[:])
}

// GenerateSalt returns SaltLength bytes of cryptographically secure random
// data. One salt is generated per vault and stored in the companion salt file.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
// This is critical for destroying the derived vault key at lock time.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the write operations are not optimized away
	// by the compiler since b is still "in use" after the loop.
	runtime.KeepAlive(b)
}
