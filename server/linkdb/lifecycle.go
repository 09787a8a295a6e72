package linkdb

import (
	"time"

	"github.com/cyclopcam/dbh"
)

// Status is the externally visible state of a link, derived from a Record and
// the current time. It is never persisted.
type Status string

const (
	StatusActive       Status = "active"
	StatusOpened       Status = "opened"
	StatusAcknowledged Status = "acknowledged"
	StatusExpired      Status = "expired"
	StatusRevoked      Status = "revoked"
)

// Label returns the human readable form used in reports and exports.
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusOpened:
		return "Opened"
	case StatusAcknowledged:
		return "Acknowledged"
	case StatusExpired:
		return "Expired"
	case StatusRevoked:
		return "Revoked"
	}
	return string(s)
}

// ParseStatus normalizes a status filter value. Unrecognized input (including
// the empty string) returns ("", false), which callers treat as "no filter".
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, StatusOpened, StatusAcknowledged, StatusExpired, StatusRevoked:
		return Status(s), true
	}
	return "", false
}

// DeriveStatus computes the visible status of a record at 'now'.
// Precedence, first match wins:
//  1. Revoked: revokedAt is set. Terminal.
//  2. Expired: now is at or past expiresAt. Pure function of time; expiry is
//     never written back to the record.
//  3. Acknowledged: the recipient explicitly confirmed reading.
//  4. Opened: the recipient loaded the viewer at least once.
//  5. Active: none of the above.
//
// Revocation and expiry outrank engagement because they decide whether the
// link is still usable. Acknowledgment outranks opening because it is the
// stronger, explicit signal.
func DeriveStatus(r *Record, now time.Time) Status {
	if !r.RevokedAt.IsZero() {
		return StatusRevoked
	}
	if !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt.Get()) {
		return StatusExpired
	}
	if r.Acknowledged || !r.AcknowledgedAt.IsZero() {
		return StatusAcknowledged
	}
	if r.Opened {
		return StatusOpened
	}
	return StatusActive
}

// MarkOpened records the first successful document view. Idempotent, and a
// no-op on any stronger state - opening must never downgrade a link.
func MarkOpened(r *Record, now time.Time) {
	if r.Opened {
		return
	}
	r.Opened = true
	r.OpenedAt = dbh.MakeIntTime(now)
}

// Acknowledge records the recipient's explicit confirmation.
// Returns ErrLinkClosed if the link is revoked or expired - a recipient cannot
// retroactively acknowledge a dead link. Idempotent if already acknowledged:
// the original AcknowledgedAt is preserved and no error is returned.
func Acknowledge(r *Record, now time.Time) error {
	switch DeriveStatus(r, now) {
	case StatusRevoked, StatusExpired:
		return ErrLinkClosed
	case StatusAcknowledged:
		return nil
	}
	r.Acknowledged = true
	r.AcknowledgedAt = dbh.MakeIntTime(now)
	return nil
}

// Revoke withdraws the link. Always permitted (administrator override),
// idempotent: re-revoking keeps the original RevokedAt.
func Revoke(r *Record, now time.Time) {
	if !r.RevokedAt.IsZero() {
		return
	}
	r.RevokedAt = dbh.MakeIntTime(now)
}
