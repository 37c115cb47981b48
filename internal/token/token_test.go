package token

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(now time.Time) *Codec {
	c := NewCodec([]byte("test-secret"))
	c.clock = func() time.Time { return now }
	return c
}

func TestMintVerify_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(now)

	owner := uuid.New()
	tok := c.Mint(42, owner, time.Hour)

	claims, err := c.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.JobID)
	assert.Equal(t, owner, claims.OwnerID)
}

func TestVerify_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(now)
	tok := c.Mint(7, uuid.New(), time.Minute)

	// Same token checked after the ttl has elapsed.
	c.clock = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := c.Verify(tok)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerify_SignatureTamper(t *testing.T) {
	c := newTestCodec(time.Now())
	tok := c.Mint(7, uuid.New(), time.Hour)

	// Flip a single character in the signature segment.
	i := strings.LastIndex(tok, ":") + 1
	b := []byte(tok)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}

	_, err := c.Verify(string(b))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_PayloadTamper(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(now)
	owner := uuid.New()

	tok := c.Mint(7, owner, time.Hour)
	parts := strings.Split(tok, ":")
	require.Len(t, parts, 4)

	// Swap the job id for another one; the signature no longer matches.
	parts[0] = "8"
	_, err := c.Verify(strings.Join(parts, ":"))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_Malformed(t *testing.T) {
	c := newTestCodec(time.Now())

	cases := []struct {
		name string
		tok  string
	}{
		{name: "empty", tok: ""},
		{name: "too few fields", tok: "1:2:3"},
		{name: "too many fields", tok: "1:2:3:4:5"},
		{name: "garbage", tok: "not-a-token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Verify(tc.tok)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestVerify_DifferentSecret(t *testing.T) {
	a := NewCodec([]byte("secret-a"))
	b := NewCodec([]byte("secret-b"))

	tok := a.Mint(7, uuid.New(), time.Hour)
	_, err := b.Verify(tok)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestMint_URLSafe(t *testing.T) {
	c := newTestCodec(time.Now())
	tok := c.Mint(123456, uuid.New(), time.Hour)

	assert.NotContains(t, tok, "/")
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "=")
}
