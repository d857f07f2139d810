package utils

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("s3cret", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("s3cret", "not-a-hash"))
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("alice", "secret", time.Hour, "recon")
	require.NoError(t, err)

	claims, err := ParseAndValidateJWT(token, "secret", "recon")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = ParseAndValidateJWT(token, "other-secret", "recon")
	assert.Error(t, err)
	_, err = ParseAndValidateJWT(token, "secret", "other-issuer")
	assert.Error(t, err)

	claims, err = ParseAndValidateJWT(token, "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "recon", claims.Issuer)
}

func TestGenerateSecureRandomString(t *testing.T) {
	a, err := GenerateSecureRandomString(16)
	require.NoError(t, err)
	b, err := GenerateSecureRandomString(16)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)

	_, err = GenerateSecureRandomString(0)
	assert.Error(t, err)
}

func TestPosthogWrapperWithoutKeyIsNoop(t *testing.T) {
	w := InitializePosthogClient("", slog.Default())
	assert.False(t, w.IsInitialized())
	assert.NotPanics(t, func() {
		w.Enqueue("alice", "reconciliation_confirmed", nil)
		w.Close()
	})

	var nilWrapper *PosthogClientWrapper
	assert.False(t, nilWrapper.IsInitialized())
}
