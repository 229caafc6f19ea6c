// Package transport holds the thin mail-transport collaborators: SMTP
// delivery and IMAP inbound fetching. Both sit behind interfaces so the
// orchestrator and ingestor can be tested without a live mail server.
package transport

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// OutboundEmail is one message to deliver.
type OutboundEmail struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

// Mailer delivers outbound email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, email OutboundEmail) (string, error)
}

// SMTPConfig holds SMTP connection and identity settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string // SSL, TLS, STARTTLS
	FromEmail  string
	FromName   string
}

// SMTPMailer sends mail over SMTP via gomail.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *logrus.Logger
}

// NewSMTPMailer creates an SMTP-backed mailer.
func NewSMTPMailer(cfg SMTPConfig, logger *logrus.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Send delivers the email and returns a generated message id. The SMTP
// dialer has no context support; delivery runs to completion or fails.
func (s *SMTPMailer) Send(_ context.Context, email OutboundEmail) (string, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.cfg.Host)

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail))
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", email.Body)
	if email.HTMLBody != "" {
		m.AddAlternative("text/html", email.HTMLBody)
	}

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.SSL = s.cfg.Encryption == "SSL"

	if err := d.DialAndSend(m); err != nil {
		return "", fmt.Errorf("error sending email: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"to":         email.To,
		"message_id": messageID,
	}).Info("email sent")
	return messageID, nil
}
