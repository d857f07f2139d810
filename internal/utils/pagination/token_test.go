package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeSessionToken(t *testing.T) {
	periodEnd := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	createdAt := time.Date(2026, 2, 1, 14, 30, 45, 123456789, time.UTC)

	token := EncodeSessionToken(periodEnd, createdAt, "sess-1")
	assert.NotEmpty(t, token, "Token should not be empty")
	assert.NotContains(t, token, "=", "Token must be safe in a query string")

	gotEnd, gotCreated, gotID, err := DecodeSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, periodEnd, gotEnd)
	assert.Equal(t, createdAt, gotCreated)
	assert.Equal(t, "sess-1", gotID)

	// Non-UTC times come back as the same instant
	ist := time.FixedZone("IST", 5*3600+1800)
	local := time.Date(2026, 2, 1, 20, 0, 0, 0, ist)
	_, gotCreated, _, err = DecodeSessionToken(EncodeSessionToken(periodEnd, local, "sess-2"))
	require.NoError(t, err)
	assert.True(t, local.Equal(gotCreated))
}

func TestDecodeSessionTokenError(t *testing.T) {
	_, _, _, err := DecodeSessionToken("this is not base64!")
	assert.ErrorContains(t, err, "base64 decode")

	twoFields := base64.RawURLEncoding.EncodeToString([]byte("2026-01-31T00:00:00Z|2026-02-01T00:00:00Z"))
	_, _, _, err = DecodeSessionToken(twoFields)
	assert.ErrorContains(t, err, "split")

	badDate := EncodeMultiFieldToken("notadate", "2026-02-01T00:00:00Z", "sess-1")
	_, _, _, err = DecodeSessionToken(badDate)
	assert.ErrorContains(t, err, "period end parse")

	badCreated := EncodeMultiFieldToken("2026-01-31T00:00:00Z", "nope", "sess-1")
	_, _, _, err = DecodeSessionToken(badCreated)
	assert.ErrorContains(t, err, "created_at parse")
}

func TestMultiFieldToken(t *testing.T) {
	token := EncodeMultiFieldToken("a", "b", "c")
	parts, err := DecodeMultiFieldToken(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, parts)
}
