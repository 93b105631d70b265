package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour, "eth-reserves")
	require.NoError(t, err)

	token, expiresAt, err := issuer.Issue("admin-1", "ops@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.Subject)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Minute, "eth-reserves")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return past }
	token, _, err := issuer.Issue("admin-1", "ops@example.com")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsOtherSecretAndIssuer(t *testing.T) {
	a, err := NewTokenIssuer(testSecret, time.Hour, "eth-reserves")
	require.NoError(t, err)
	b, err := NewTokenIssuer("another-secret-of-enough-length", time.Hour, "eth-reserves")
	require.NoError(t, err)
	c, err := NewTokenIssuer(testSecret, time.Hour, "someone-else")
	require.NoError(t, err)

	token, _, err := a.Issue("admin-1", "ops@example.com")
	require.NoError(t, err)

	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = c.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = a.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_ShortSecret(t *testing.T) {
	_, err := NewTokenIssuer("short", time.Hour, "x")
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "correct horse battery"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrInvalidCredentials)

	_, err = HashPassword("short")
	assert.Error(t, err)
}
