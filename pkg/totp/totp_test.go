package totp

import (
	"encoding/base32"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret is the RFC 6238 reference secret "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

// TestCodeRFCVectors checks the six-digit codes against the published
// RFC 6238 Appendix B reference vectors (their low six digits).
func TestCodeRFCVectors(t *testing.T) {
	vectors := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}

	for _, v := range vectors {
		got, err := Code(rfcSecret, time.Unix(v.unix, 0), DefaultTimeStep)
		require.NoError(t, err)
		assert.Equal(t, v.code, got, "unix time %d", v.unix)
	}
}

func TestCodeNormalizesSecret(t *testing.T) {
	now := time.Unix(1234567890, 0)

	want, err := Code(rfcSecret, now, DefaultTimeStep)
	require.NoError(t, err)

	sloppy := "gezd gnbv gy3t qojq\ngezd gnbv gy3t qojq"
	got, err := Code(sloppy, now, DefaultTimeStep)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCodeInvalidSecret(t *testing.T) {
	_, err := Code("not!base32", time.Now(), DefaultTimeStep)
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestVerify(t *testing.T) {
	now := time.Unix(1111111109, 0)

	code, err := Code(rfcSecret, now, DefaultTimeStep)
	require.NoError(t, err)

	ok, err := Verify(rfcSecret, code, now, 1, DefaultTimeStep)
	require.NoError(t, err)
	assert.True(t, ok, "current code must verify")

	// One step of drift in either direction is tolerated.
	ok, err = Verify(rfcSecret, code, now.Add(30*time.Second), 1, DefaultTimeStep)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(rfcSecret, code, now.Add(-30*time.Second), 1, DefaultTimeStep)
	require.NoError(t, err)
	assert.True(t, ok)

	// More than window steps away fails.
	ok, err = Verify(rfcSecret, code, now.Add(2*30*time.Second), 1, DefaultTimeStep)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Verify(rfcSecret, "000000", now, 1, DefaultTimeStep)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateSecret(t *testing.T) {
	s1, err := GenerateSecret()
	require.NoError(t, err)
	s2, err := GenerateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32, "20 bytes encode to 32 base32 characters")

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s1)
	require.NoError(t, err)
	assert.Len(t, raw, SecretLength)

	// A freshly generated secret produces a verifiable code.
	now := time.Now()
	code, err := Code(s1, now, DefaultTimeStep)
	require.NoError(t, err)
	ok, err := Verify(s1, code, now, 1, DefaultTimeStep)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 30, Remaining(time.Unix(60, 0), 30))
	assert.Equal(t, 1, Remaining(time.Unix(59, 0), 30))
	assert.Equal(t, 15, Remaining(time.Unix(45, 0), 30))
}

func TestURI(t *testing.T) {
	uri := URI("ABC234", "alice@example.com", "passvault")
	assert.Equal(t, "otpauth://totp/passvault:alice@example.com?secret=ABC234&issuer=passvault", uri)
}
