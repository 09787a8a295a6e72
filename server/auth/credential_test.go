package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCredentialRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	cred := codec.IssueAt("admin", now, DefaultTTL)
	require.NotEmpty(t, cred)
	require.Equal(t, 2, len(strings.Split(cred, ".")))

	subject, ok := codec.VerifyAt(cred, now)
	require.True(t, ok)
	require.Equal(t, "admin", subject)

	// Valid right up to expiry, invalid after
	subject, ok = codec.VerifyAt(cred, now.Add(DefaultTTL))
	require.True(t, ok)
	require.Equal(t, "admin", subject)
	_, ok = codec.VerifyAt(cred, now.Add(DefaultTTL+time.Second))
	require.False(t, ok)
}

func TestCredentialDeterministic(t *testing.T) {
	codec := NewCodec("test-secret")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := codec.IssueAt("admin", now, time.Hour)
	b := codec.IssueAt("admin", now, time.Hour)
	require.Equal(t, a, b)
}

func TestCredentialTamper(t *testing.T) {
	codec := NewCodec("test-secret")
	now := time.Now()
	cred := codec.IssueAt("admin", now, time.Hour)

	// Flipping any single character must invalidate the credential
	alphabet := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for i := 0; i < len(cred); i++ {
		if cred[i] == '.' {
			continue
		}
		for _, c := range []byte(alphabet) {
			if c == cred[i] {
				continue
			}
			mutated := cred[:i] + string(c) + cred[i+1:]
			_, ok := codec.VerifyAt(mutated, now)
			require.False(t, ok, "mutation at %v accepted", i)
			break
		}
	}
}

func TestCredentialMalformed(t *testing.T) {
	codec := NewCodec("test-secret")
	now := time.Now()
	good := codec.IssueAt("admin", now, time.Hour)
	parts := strings.Split(good, ".")

	for _, bad := range []string{
		"",
		".",
		"a",
		"a.b.c",
		parts[0],                    // payload only
		parts[0] + ".",              // empty signature
		"." + parts[1],              // empty payload
		parts[1] + "." + parts[0],   // swapped segments
		"!!!." + parts[1],           // payload not base64
		parts[0] + ".!!!",           // signature not base64
	} {
		_, ok := codec.VerifyAt(bad, now)
		require.False(t, ok, "accepted %q", bad)
	}

	// A credential signed with a different secret
	other := NewCodec("other-secret").IssueAt("admin", now, time.Hour)
	_, ok := codec.VerifyAt(other, now)
	require.False(t, ok)
}
