// Package mailer sends the two emails a contact submission triggers: a
// confirmation to the sender and a notification to the admin. The
// service talks to the Sender interface so tests can swap in a stub,
// and deployments without SMTP credentials run on NopSender.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/portfolio/backend/internal/model"
)

// Sender dispatches submission emails.
type Sender interface {
	SendConfirmation(ctx context.Context, rec *model.SubmissionRecord) error
	SendAdminNotification(ctx context.Context, rec *model.SubmissionRecord) error
}

// Config carries SMTP connection and addressing settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AdminTo  string
	SiteName string
}

// SMTPSender sends mail over SMTP with PLAIN auth when credentials are
// set.
type SMTPSender struct {
	cfg Config
	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an SMTPSender from the given config.
func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

var _ Sender = (*SMTPSender)(nil)

// SendConfirmation mails the sender that their message was received.
func (s *SMTPSender) SendConfirmation(ctx context.Context, rec *model.SubmissionRecord) error {
	subject := fmt.Sprintf("Thanks for getting in touch with %s", s.cfg.SiteName)
	body, err := renderConfirmation(s.cfg.SiteName, rec)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	return s.deliver(ctx, rec.Email, subject, body)
}

// SendAdminNotification mails the admin about the new submission.
func (s *SMTPSender) SendAdminNotification(ctx context.Context, rec *model.SubmissionRecord) error {
	subject := fmt.Sprintf("[%s] New contact submission: %s", s.cfg.SiteName, rec.Subject)
	body, err := renderAdminNotification(s.cfg.SiteName, rec)
	if err != nil {
		return fmt.Errorf("render notification: %w", err)
	}
	return s.deliver(ctx, s.cfg.AdminTo, subject, body)
}

func (s *SMTPSender) deliver(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", sanitizeHeader(subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	return s.send(addr, auth, s.cfg.From, []string{to}, msg.Bytes())
}

// sanitizeHeader strips CR/LF so user-derived text cannot inject
// additional headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// NopSender discards all mail. Used when SMTP is not configured.
type NopSender struct{}

var _ Sender = NopSender{}

func (NopSender) SendConfirmation(ctx context.Context, rec *model.SubmissionRecord) error {
	return nil
}

func (NopSender) SendAdminNotification(ctx context.Context, rec *model.SubmissionRecord) error {
	return nil
}
