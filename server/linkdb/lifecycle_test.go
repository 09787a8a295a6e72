package linkdb

import (
	"testing"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/stretchr/testify/require"
)

func makeRecord(created time.Time, ttl time.Duration) *Record {
	return &Record{
		Token:      NewToken(),
		DocumentID: "doc-1",
		Name:       "Alice",
		Email:      "alice@example.com",
		CreatedAt:  dbh.MakeIntTime(created),
		ExpiresAt:  dbh.MakeIntTime(created.Add(ttl)),
	}
}

func TestDeriveStatusPrecedence(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)

	r := makeRecord(created, 24*time.Hour)
	require.Equal(t, StatusActive, DeriveStatus(r, now))

	MarkOpened(r, now)
	require.Equal(t, StatusOpened, DeriveStatus(r, now))

	require.NoError(t, Acknowledge(r, now))
	require.Equal(t, StatusAcknowledged, DeriveStatus(r, now))

	// Expiry outranks engagement
	require.Equal(t, StatusExpired, DeriveStatus(r, created.Add(25*time.Hour)))

	// Revocation outranks everything, including expiry
	Revoke(r, now)
	require.Equal(t, StatusRevoked, DeriveStatus(r, now))
	require.Equal(t, StatusRevoked, DeriveStatus(r, created.Add(25*time.Hour)))
}

func TestExpiryBoundary(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := makeRecord(created, 24*time.Hour)

	require.Equal(t, StatusActive, DeriveStatus(r, created.Add(24*time.Hour-time.Millisecond)))
	// Expiry is inclusive: at exactly expiresAt the link is dead
	require.Equal(t, StatusExpired, DeriveStatus(r, created.Add(24*time.Hour)))
	require.Equal(t, StatusExpired, DeriveStatus(r, created.Add(25*time.Hour)))
}

func TestMarkOpenedIdempotent(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := makeRecord(created, 24*time.Hour)

	first := created.Add(time.Hour)
	MarkOpened(r, first)
	require.True(t, r.Opened)
	require.Equal(t, dbh.MakeIntTime(first), r.OpenedAt)

	// Re-opening keeps the original timestamp
	MarkOpened(r, first.Add(time.Hour))
	require.Equal(t, dbh.MakeIntTime(first), r.OpenedAt)

	// Opening after acknowledgment must not downgrade the visible status
	require.NoError(t, Acknowledge(r, first))
	MarkOpened(r, first.Add(2*time.Hour))
	require.Equal(t, StatusAcknowledged, DeriveStatus(r, first.Add(2*time.Hour)))
}

func TestAcknowledge(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := makeRecord(created, 24*time.Hour)

	first := created.Add(time.Hour)
	require.NoError(t, Acknowledge(r, first))
	require.True(t, r.Acknowledged)
	require.Equal(t, dbh.MakeIntTime(first), r.AcknowledgedAt)

	// Idempotent: the first acknowledgment timestamp survives
	require.NoError(t, Acknowledge(r, first.Add(time.Hour)))
	require.Equal(t, dbh.MakeIntTime(first), r.AcknowledgedAt)

	// A dead link cannot be acknowledged
	expired := makeRecord(created, 24*time.Hour)
	require.ErrorIs(t, Acknowledge(expired, created.Add(25*time.Hour)), ErrLinkClosed)
	require.False(t, expired.Acknowledged)

	revoked := makeRecord(created, 24*time.Hour)
	Revoke(revoked, first)
	require.ErrorIs(t, Acknowledge(revoked, first), ErrLinkClosed)
	require.False(t, revoked.Acknowledged)
}

func TestRevokeIdempotent(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := makeRecord(created, 24*time.Hour)

	first := created.Add(time.Hour)
	Revoke(r, first)
	require.Equal(t, dbh.MakeIntTime(first), r.RevokedAt)

	Revoke(r, first.Add(time.Hour))
	require.Equal(t, dbh.MakeIntTime(first), r.RevokedAt)
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("revoked")
	require.True(t, ok)
	require.Equal(t, StatusRevoked, s)

	for _, bad := range []string{"", "Active", "deleted", "used"} {
		_, ok := ParseStatus(bad)
		require.False(t, ok)
	}
}

func TestNewToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		tok := NewToken()
		require.Len(t, tok, TokenLength)
		require.False(t, seen[tok])
		seen[tok] = true
	}
}
