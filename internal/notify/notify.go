// Package notify sends outbound email for invoices and proposals.
package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotConfigured marks a notifier with no SMTP host to talk to. Document
// sends still succeed without it; the caller just reports a warning.
var ErrNotConfigured = errors.New("notifier not configured")

// Message is one outbound email, optionally with a file attachment.
type Message struct {
	To             []string
	Cc             []string
	Subject        string
	Body           string
	AttachmentPath string
}

// Notifier delivers messages. Delivery failures never roll back the record
// changes that triggered them.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPNotifier delivers via a plain-auth SMTP relay.
type SMTPNotifier struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewSMTPNotifier(host, port, username, password, from string) *SMTPNotifier {
	if from == "" {
		from = username
	}
	return &SMTPNotifier{Host: host, Port: port, Username: username, Password: password, From: from}
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if n.Host == "" {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return errors.New("no recipients")
	}
	payload, err := n.build(msg)
	if err != nil {
		return err
	}
	recipients := append(append([]string{}, msg.To...), msg.Cc...)

	var auth smtp.Auth
	if n.Username != "" {
		auth = smtp.PlainAuth("", n.Username, n.Password, n.Host)
	}

	// smtp.SendMail has no context support; race it against the deadline.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(n.Host+":"+n.Port, auth, n.From, recipients, payload)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

const boundary = "=_conductor_mail_boundary"

func (n *SMTPNotifier) build(msg Message) ([]byte, error) {
	var b strings.Builder
	b.WriteString("From: " + n.From + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	if len(msg.Cc) > 0 {
		b.WriteString("Cc: " + strings.Join(msg.Cc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.AttachmentPath == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String()), nil
	}

	attachment, err := os.ReadFile(msg.AttachmentPath)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	name := filepath.Base(msg.AttachmentPath)

	b.WriteString("Content-Type: multipart/mixed; boundary=\"" + boundary + "\"\r\n\r\n")
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n--" + boundary + "\r\n")
	b.WriteString("Content-Type: application/pdf; name=\"" + name + "\"\r\n")
	b.WriteString("Content-Disposition: attachment; filename=\"" + name + "\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	encoded := base64.StdEncoding.EncodeToString(attachment)
	for len(encoded) > 76 {
		b.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded + "\r\n")
	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String()), nil
}
