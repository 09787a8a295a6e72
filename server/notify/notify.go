// Package notify delivers rendered messages to recipients. The server treats
// delivery as an external, potentially slow collaborator: failures are
// reported per recipient and never retried internally.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
)

// Message is a fully rendered notification, ready for transport.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Notifier sends one message and returns a delivery id, or an error.
type Notifier interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"` // 465 = implicit TLS, anything else = STARTTLS
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// SMTPNotifier delivers mail over SMTP.
type SMTPNotifier struct {
	cfg SMTPConfig
	log logs.Log
}

func NewSMTPNotifier(log logs.Log, cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is not configured")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = "no-reply@localhost"
	}
	return &SMTPNotifier{cfg: cfg, log: log}, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) (string, error) {
	addr := fmt.Sprintf("%v:%v", n.cfg.Host, n.cfg.Port)
	messageID := fmt.Sprintf("<%v@%v>", time.Now().UnixNano(), n.cfg.Host)

	var conn net.Conn
	var err error
	dialer := &net.Dialer{}
	if n.cfg.Port == 465 {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: n.cfg.Host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return "", fmt.Errorf("Failed to connect to SMTP server %v: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if n.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
				return "", err
			}
		}
	}
	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return "", err
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return "", err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return "", err
	}
	w, err := client.Data()
	if err != nil {
		return "", err
	}
	if _, err := w.Write(buildMIME(n.cfg.From, messageID, msg)); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	if err := client.Quit(); err != nil {
		return "", err
	}
	n.log.Infof("Sent mail to %v (%v)", msg.To, messageID)
	return messageID, nil
}

// buildMIME assembles a multipart/alternative message with text and HTML
// bodies.
func buildMIME(from, messageID string, msg Message) []byte {
	boundary := fmt.Sprintf("part-%v", time.Now().UnixNano())
	b := strings.Builder{}
	write := func(format string, args ...interface{}) {
		b.WriteString(fmt.Sprintf(format, args...))
		b.WriteString("\r\n")
	}
	write("From: %v", from)
	write("To: %v", msg.To)
	write("Subject: %v", msg.Subject)
	write("Message-ID: %v", messageID)
	write("MIME-Version: 1.0")
	write("Content-Type: multipart/alternative; boundary=%q", boundary)
	write("")
	write("--%v", boundary)
	write("Content-Type: text/plain; charset=UTF-8")
	write("")
	write("%v", msg.Text)
	write("--%v", boundary)
	write("Content-Type: text/html; charset=UTF-8")
	write("")
	write("%v", msg.HTML)
	write("--%v--", boundary)
	return []byte(b.String())
}
