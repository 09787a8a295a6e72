package linkdb

import (
	"errors"
)

var (
	// ErrNotFound is returned when a token has no record.
	ErrNotFound = errors.New("link not found")

	// ErrConflict is returned when creating a record whose token already
	// exists. Given the randomness width of tokens this should never happen
	// in practice, so callers treat it as an integrity failure, not a
	// retryable condition.
	ErrConflict = errors.New("link token already exists")

	// ErrLinkClosed is returned when a lifecycle transition is rejected
	// because the link is revoked or expired.
	ErrLinkClosed = errors.New("link is revoked or expired")

	// ErrNoContact is returned when a delivery is requested for a record
	// that has neither an email address nor a phone number.
	ErrNoContact = errors.New("link has no contact channel")
)

// Store is durable keyed storage of link records (token -> record).
// Implementations must guarantee:
//   - Each record is an independent unit. Mutating one token never blocks, or
//     corrupts, operations on a different token.
//   - Writes are atomic at the record level: an interrupted write leaves
//     either the old record or the new one, never a truncated hybrid.
//     (The file backend writes to a temp file and renames; the KV and SQL
//     backends get this from their engines.)
//   - Two concurrent Updates of the same token are last-writer-wins on the
//     whole record. This is an accepted limitation, not something callers may
//     rely on for sequencing.
type Store interface {
	// Create persists a new record under its token.
	// Returns ErrConflict if the token already exists.
	Create(rec *Record) error

	// Get returns the record for a token, or ErrNotFound.
	Get(token string) (*Record, error)

	// ListAll returns all records, in no particular order.
	// Ordering is a presentation concern.
	ListAll() ([]*Record, error)

	// Update reads the record, applies mutate, and writes it back.
	// If mutate returns an error, nothing is written and that error is
	// returned. Returns the record as written, or ErrNotFound.
	Update(token string, mutate func(*Record) error) (*Record, error)

	// Delete removes the record. Deleting an absent token is not an error:
	// the observable end state (record gone) is identical.
	Delete(token string) error

	Close() error
}
