package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vesta-Code/vesta/internal/clock"
)

func newTestResolver(now time.Time) *Resolver {
	return &Resolver{
		secret: "session-secret",
		ttl:    time.Hour,
		clock:  clock.NewFixed(now),
	}
}

func TestIssueAndResolve(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newTestResolver(now)

	tok, err := r.Issue(42, RoleSeller)
	require.NoError(t, err)

	ident, err := r.Resolve(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), ident.PartyID)
	assert.Equal(t, RoleSeller, ident.Role)
	assert.False(t, ident.Impersonating)
	assert.False(t, ident.Admin())
}

func TestResolveRejectsExpiredSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tok, err := newTestResolver(now).Issue(42, RoleBuyer)
	require.NoError(t, err)

	late := newTestResolver(now.Add(2 * time.Hour))
	_, err = late.Resolve(tok)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestResolveRejectsForeignSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tok, err := newTestResolver(now).Issue(42, RoleBuyer)
	require.NoError(t, err)

	other := &Resolver{secret: "different-secret", ttl: time.Hour, clock: clock.NewFixed(now)}
	_, err = other.Resolve(tok)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestResolveRejectsGarbage(t *testing.T) {
	r := newTestResolver(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := r.Resolve(tok)
		assert.ErrorIs(t, err, ErrInvalidSession)
	}
}

func TestAdminRole(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newTestResolver(now)

	tok, err := r.Issue(1, RoleAdmin)
	require.NoError(t, err)

	ident, err := r.Resolve(tok)
	require.NoError(t, err)
	assert.True(t, ident.Admin())
}
