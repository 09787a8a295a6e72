package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// DefaultTTL is the default lifetime of an admin credential (and of the
// cookie that carries it).
const DefaultTTL = 8 * time.Hour

// Codec issues and verifies the stateless admin session credential.
// The credential is the session: nothing is stored server side, so a
// credential stays valid until its natural expiry. Rotating the secret is
// the only way to invalidate outstanding credentials early.
//
// Wire format: base64url(JSON{u,iat,exp}) + "." + base64url(HMAC-SHA256 of
// the payload segment), unpadded, timestamps in unix seconds.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

type credentialPayload struct {
	Subject   string `json:"u"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Issue creates a credential for 'subject', valid for 'ttl' from now.
func (c *Codec) Issue(subject string, ttl time.Duration) string {
	return c.IssueAt(subject, time.Now(), ttl)
}

// IssueAt is Issue with an explicit clock, so tests can mint credentials at
// arbitrary moments. Deterministic for a fixed (subject, now, ttl, secret).
func (c *Codec) IssueAt(subject string, now time.Time, ttl time.Duration) string {
	payload := credentialPayload{
		Subject:   subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	raw, _ := json.Marshal(&payload)
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + base64.RawURLEncoding.EncodeToString(c.sign(body))
}

// Verify returns the subject of a valid credential, or ("", false).
// Every failure mode (absent, malformed, bad signature, expired) collapses
// into the same result, so a caller cannot be turned into an oracle that
// distinguishes tampered credentials from expired ones.
func (c *Codec) Verify(credential string) (string, bool) {
	return c.VerifyAt(credential, time.Now())
}

func (c *Codec) VerifyAt(credential string, now time.Time) (string, bool) {
	if credential == "" {
		return "", false
	}
	parts := strings.Split(credential, ".")
	if len(parts) != 2 {
		return "", false
	}
	body, sigB64 := parts[0], parts[1]
	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(sig, c.sign(body)) {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", false
	}
	payload := credentialPayload{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", false
	}
	if payload.ExpiresAt < now.Unix() {
		return "", false
	}
	return payload.Subject, true
}

func (c *Codec) sign(body string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return mac.Sum(nil)
}
