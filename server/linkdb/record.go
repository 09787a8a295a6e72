package linkdb

import (
	"crypto/rand"

	"github.com/cyclopcam/dbh"
)

// Record is one recipient-scoped, token-addressed grant of access to one document.
// The token is both the primary key and the URL path segment, so it must be
// unguessable. All timestamps are unix milliseconds (dbh.IntTime), where zero
// means "not set". The boolean flags and their timestamps are monotonic: once
// set, they are never cleared. The externally visible status is never stored;
// it is derived from these fields by DeriveStatus.
type Record struct {
	Token          string      `json:"token" gorm:"primaryKey"`
	DocumentID     string      `json:"documentId"`
	Name           string      `json:"name"`
	Email          string      `json:"email,omitempty" gorm:"default:null"`
	Phone          string      `json:"phone,omitempty" gorm:"default:null"`
	CreatedAt      dbh.IntTime `json:"createdAt"`
	ExpiresAt      dbh.IntTime `json:"expiresAt"`
	Acknowledged   bool        `json:"acknowledged"`
	AcknowledgedAt dbh.IntTime `json:"acknowledgedAt,omitempty" gorm:"default:null"`
	Opened         bool        `json:"opened"`
	OpenedAt       dbh.IntTime `json:"openedAt,omitempty" gorm:"default:null"`
	RevokedAt      dbh.IntTime `json:"revokedAt,omitempty" gorm:"default:null"`
	DocumentLabel  string      `json:"documentLabel,omitempty" gorm:"default:null"`
	URL            string      `json:"url"`
}

func (r *Record) TableName() string {
	return "link"
}

// HasContact is true if the record has at least one deliverable contact channel.
func (r *Record) HasContact() bool {
	return r.Email != "" || r.Phone != ""
}

func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// This is 62 symbols, hence 5.9542 bits per character.
// At 32 characters, that's 190 bits.
const tokenChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const TokenLength = 32

// NewToken returns a fresh link token from a cryptographically strong source.
func NewToken() string {
	buf := make([]byte, TokenLength)
	if n, _ := rand.Read(buf[:]); n != TokenLength {
		panic("Unable to read from crypto/rand")
	}
	for i := 0; i < TokenLength; i++ {
		buf[i] = tokenChars[buf[i]%byte(len(tokenChars))]
	}
	return string(buf)
}
