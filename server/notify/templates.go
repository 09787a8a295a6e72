package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// TemplateData is everything the recipient-facing mail needs.
type TemplateData struct {
	Name          string
	DocumentLabel string
	URL           string
	ExpiresAt     time.Time
	Resend        bool
}

const draftSubject = "Your document is ready"
const resendSubject = "Reminder: your document is waiting"

// Subject returns the subject line for a draft or resend mail.
func Subject(resend bool) string {
	if resend {
		return resendSubject
	}
	return draftSubject
}

var draftHTML = template.Must(template.New("draft").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f4f7;font-family:Helvetica,Arial,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background:#f4f4f7;padding:24px 0;">
<tr><td align="center">
<table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px;">
<tr><td>
<p style="margin:0 0 16px;font-size:16px;color:#222;">Hello {{.Name}},</p>
{{if .Resend}}
<p style="margin:0 0 16px;font-size:15px;color:#444;">This is a reminder that a document is still waiting for you: <strong>{{.DocumentLabel}}</strong>.</p>
{{else}}
<p style="margin:0 0 16px;font-size:15px;color:#444;">A document has been shared with you: <strong>{{.DocumentLabel}}</strong>.</p>
{{end}}
<p style="margin:0 0 24px;font-size:15px;color:#444;">Use the button below to open it. The link is personal and works once.</p>
<table role="presentation" cellpadding="0" cellspacing="0" style="margin:0 auto 24px;">
<tr><td style="background:#2563eb;border-radius:6px;">
<a href="{{.URL}}" style="display:inline-block;padding:12px 28px;font-size:15px;color:#ffffff;text-decoration:none;">Open document</a>
</td></tr>
</table>
<p style="margin:0 0 8px;font-size:13px;color:#888;">If the button does not work, copy this address into your browser:</p>
<p style="margin:0 0 24px;font-size:13px;color:#2563eb;word-break:break-all;">{{.URL}}</p>
<p style="margin:0;font-size:13px;color:#888;">This link expires on {{.ExpiresAt.Format "2 Jan 2006 15:04 MST"}}.</p>
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`))

// RenderHTML produces the HTML body for a draft or resend mail.
func RenderHTML(d TemplateData) (string, error) {
	b := strings.Builder{}
	if err := draftHTML.Execute(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderText produces the plain text alternative body.
func RenderText(d TemplateData) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "Hello %v,\r\n\r\n", d.Name)
	if d.Resend {
		fmt.Fprintf(&b, "This is a reminder that a document is still waiting for you: %v.\r\n\r\n", d.DocumentLabel)
	} else {
		fmt.Fprintf(&b, "A document has been shared with you: %v.\r\n\r\n", d.DocumentLabel)
	}
	fmt.Fprintf(&b, "Open it here (the link is personal and works once):\r\n%v\r\n\r\n", d.URL)
	fmt.Fprintf(&b, "This link expires on %v.\r\n", d.ExpiresAt.Format("2 Jan 2006 15:04 MST"))
	return b.String()
}

// PreviewData is a fixture used by the admin preview endpoint.
func PreviewData(baseURL string) TemplateData {
	return TemplateData{
		Name:          "Test Client",
		DocumentLabel: "Sample Agreement",
		URL:           baseURL + "/r/preview-token",
		ExpiresAt:     time.Now().Add(12 * time.Hour),
	}
}
