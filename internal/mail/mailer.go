package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"net/url"

	"threadmart/internal/config"

	"go.uber.org/zap"
)

// Mailer dispatches account emails through an external collaborator.
type Mailer interface {
	SendVerification(ctx context.Context, to, username, token string) error
	SendPasswordReset(ctx context.Context, to, username, token string) error
}

// SMTPMailer sends mail through a configured SMTP relay.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	baseURL string
}

// NewSMTPMailer creates a mailer backed by the SMTP relay in cfg. Links in
// the messages point at baseURL.
func NewSMTPMailer(cfg config.SMTPConfig, baseURL string) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, baseURL: baseURL}
}

func (m *SMTPMailer) SendVerification(ctx context.Context, to, username, token string) error {
	link := fmt.Sprintf("%s/api/users/verify-email?token=%s", m.baseURL, url.QueryEscape(token))
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nWelcome to Threadmart! Please verify your email address by opening the link below:\r\n\r\n%s\r\n\r\nThe link expires in 24 hours.\r\n",
		username, link,
	)
	return m.send(to, "Verify your Threadmart account", body)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, username, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.baseURL, url.QueryEscape(token))
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nA password reset was requested for your account. Open the link below to choose a new password:\r\n\r\n%s\r\n\r\nThe link expires in 15 minutes. If you did not request this, ignore this email.\r\n",
		username, link,
	)
	return m.send(to, "Reset your Threadmart password", body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		m.cfg.From, to, subject, body,
	)

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	return nil
}

// LogMailer writes mail to the log instead of sending it. Used in
// development when no SMTP relay is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerification(ctx context.Context, to, username, token string) error {
	m.logger.Info("Verification mail (not sent, no SMTP configured)",
		zap.String("to", to),
		zap.String("token", token),
	)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, username, token string) error {
	m.logger.Info("Password reset mail (not sent, no SMTP configured)",
		zap.String("to", to),
		zap.String("token", token),
	)
	return nil
}
