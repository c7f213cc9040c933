package stub

import (
	"fmt"
	"log/slog"
	"net/smtp"
)

// Mailer delivers verification emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type smtpMailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

// NewSMTPMailer sends through a local SMTP sink such as MailHog, so the
// emulator's verification mails can be read in a browser.
func NewSMTPMailer(host, port, from, username, password string) Mailer {
	return &smtpMailer{host: host, port: port, from: from, username: username, password: password}
}

func (m *smtpMailer) SendEmail(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}

type logMailer struct{}

// NewLogMailer logs mails instead of sending them; the default when no
// SMTP host is configured.
func NewLogMailer() Mailer { return logMailer{} }

func (logMailer) SendEmail(to, subject, body string) error {
	slog.Info("outgoing mail", "to", to, "subject", subject, "body", body)
	return nil
}
