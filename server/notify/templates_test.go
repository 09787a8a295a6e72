package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testData(resend bool) TemplateData {
	return TemplateData{
		Name:          "Alice",
		DocumentLabel: "Sample Agreement",
		URL:           "http://localhost:8080/r/tok-abc",
		ExpiresAt:     time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		Resend:        resend,
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(testData(false))
	require.NoError(t, err)
	require.Contains(t, html, "Alice")
	require.Contains(t, html, "Sample Agreement")
	// The URL appears both as the button and as the copyable fallback
	require.Equal(t, 2, strings.Count(html, "http://localhost:8080/r/tok-abc"))
	require.Contains(t, html, "10 Mar 2025 12:00 UTC")
	require.NotContains(t, html, "reminder")

	resent, err := RenderHTML(testData(true))
	require.NoError(t, err)
	require.Contains(t, resent, "reminder")
}

func TestRenderHTMLEscapes(t *testing.T) {
	d := testData(false)
	d.Name = `<script>alert("x")</script>`
	html, err := RenderHTML(d)
	require.NoError(t, err)
	require.NotContains(t, html, "<script>")
}

func TestRenderText(t *testing.T) {
	text := RenderText(testData(false))
	require.Contains(t, text, "Alice")
	require.Contains(t, text, "http://localhost:8080/r/tok-abc")
	require.Contains(t, text, "10 Mar 2025 12:00 UTC")
	require.NotContains(t, text, "<")

	require.Contains(t, RenderText(testData(true)), "reminder")
}

func TestSubject(t *testing.T) {
	require.NotEqual(t, Subject(false), Subject(true))
}

func TestBuildMIME(t *testing.T) {
	raw := string(buildMIME("no-reply@example.com", "<id-1@example.com>", Message{
		To:      "alice@example.com",
		Subject: "Your document is ready",
		HTML:    "<p>hello</p>",
		Text:    "hello",
	}))
	require.Contains(t, raw, "From: no-reply@example.com\r\n")
	require.Contains(t, raw, "To: alice@example.com\r\n")
	require.Contains(t, raw, "Subject: Your document is ready\r\n")
	require.Contains(t, raw, "Message-ID: <id-1@example.com>\r\n")
	require.Contains(t, raw, "multipart/alternative")
	require.Contains(t, raw, "<p>hello</p>")
}
