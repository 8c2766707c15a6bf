package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Vesta-Code/vesta/internal/clock"
)

func newTestCodec(t *testing.T, now time.Time) *Codec {
	t.Helper()
	c, err := newCodec("test-secret", 24*time.Hour, clock.NewFixed(now))
	require.NoError(t, err)
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, now)

	tok, err := codec.Mint(42, 2000, 7, 9)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	payload := codec.Verify(tok)
	require.NotNil(t, payload)
	require.Equal(t, int64(42), payload.OrderID)
	require.Equal(t, int64(2000), payload.Amount)
	require.Equal(t, int64(7), payload.SellerID)
	require.Equal(t, int64(9), payload.BuyerID)
	require.Equal(t, now, payload.IssuedAt.UTC())
}

func TestCodecRemintProducesDistinctTokens(t *testing.T) {
	codec := newTestCodec(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	first, err := codec.Mint(1, 500, 2, 3)
	require.NoError(t, err)
	second, err := codec.Mint(1, 500, 2, 3)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestCodecExpiry(t *testing.T) {
	minted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, minted)

	tok, err := codec.Mint(5, 100, 1, 2)
	require.NoError(t, err)

	cases := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"just before expiry", minted.Add(24*time.Hour - time.Minute), true},
		{"just after expiry", minted.Add(24*time.Hour + time.Minute), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			later, err := newCodec("test-secret", 24*time.Hour, clock.NewFixed(tc.at))
			require.NoError(t, err)
			payload := later.Verify(tok)
			if tc.valid {
				require.NotNil(t, payload)
			} else {
				require.Nil(t, payload)
			}
		})
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, now)

	require.Nil(t, codec.Verify(""))
	require.Nil(t, codec.Verify("not!base64!!"))
	require.Nil(t, codec.Verify(base64.RawURLEncoding.EncodeToString([]byte("short"))))
	require.Nil(t, codec.Verify(base64.RawURLEncoding.EncodeToString(make([]byte, 64))))
}

func TestCodecRejectsForeignSecret(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, now)

	other, err := newCodec("other-secret", 24*time.Hour, clock.NewFixed(now))
	require.NoError(t, err)

	tok, err := other.Mint(42, 2000, 7, 9)
	require.NoError(t, err)
	require.Nil(t, codec.Verify(tok))
}
