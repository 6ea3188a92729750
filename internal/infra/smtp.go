package infra

import (
	"fmt"
	"net/smtp"

	"github.com/dyaogo/pos-superette-sub002/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending reconciliation reports.
type Mailer struct {
	host     string
	port     int
	user     string
	password string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Enabled is false when no SMTP host is configured.
func (m *Mailer) Enabled() bool { return m != nil && m.host != "" }

// SendReport sends a report to a recipient with an optional file attachment.
func (m *Mailer) SendReport(to, subject, body, attachmentPath string) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer: SMTP not configured")
	}
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return fmt.Errorf("mailer: attach report: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return e.Send(m.addr, auth)
}
