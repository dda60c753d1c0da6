// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	sealed, err := c.Encrypt("ya29.access-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "ya29")

	again, err := c.Encrypt("ya29.access-token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access-token", plain)
}

func TestCipherRejectsTamperingAndWrongKey(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	sealed, err := c.Encrypt("secret")
	require.NoError(t, err)

	other, err := NewCipher([]byte(strings.Repeat("z", 32)))
	require.NoError(t, err)
	_, err = other.Decrypt(sealed)
	assert.Error(t, err)

	_, err = c.Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = c.Decrypt("%%%not-base64")
	assert.Error(t, err)
}

func TestNewCipherKeyLength(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"creator_id":"c1"}`)
	sig := SignPayload("s3cret", body)

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, VerifySignature("s3cret", body, sig))
	assert.False(t, VerifySignature("s3cret", []byte(`{"creator_id":"c2"}`), sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("", body, SignPayload("", body)))
	assert.False(t, VerifySignature("s3cret", body, ""))
}

func TestSecretsEqual(t *testing.T) {
	assert.True(t, SecretsEqual("abc", "abc"))
	assert.False(t, SecretsEqual("abc", "abd"))
	assert.False(t, SecretsEqual("abc", "abcd"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	ok, err := VerifyPasswordTimingSafe("correct horse", &hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPasswordTimingSafe("wrong", &hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyPasswordTimingSafe("correct horse", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, bad := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$aGFzaA",
	} {
		_, err := VerifyPassword("pw", bad)
		assert.ErrorIs(t, err, errMalformedHash, bad)
	}
}
