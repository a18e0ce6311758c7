package notify

import (
	"errors"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"
)

// MailConfig holds SMTP settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Configured reports whether enough settings are present to send mail.
func (c MailConfig) Configured() bool {
	return c.Host != "" && c.Port > 0 && c.From != ""
}

// Recipients returns To, falling back to the sender address.
func (c MailConfig) Recipients() []string {
	var out []string
	for _, addr := range c.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	if len(out) == 0 && c.From != "" {
		out = []string{c.From}
	}
	return out
}

// Mailer sends notifications as plain-text email.
type Mailer struct {
	config MailConfig
	dialer *gomail.Dialer
	logger *slog.Logger

	// Sender overrides the SMTP dialer, mostly for tests.
	Sender gomail.Sender
}

// NewMailer builds a Mailer. Port 465 uses implicit TLS, other ports
// upgrade with STARTTLS when the server offers it.
func NewMailer(cfg MailConfig, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	return &Mailer{config: cfg, dialer: d, logger: logger}
}

// Notify sends one message. Errors are logged and swallowed.
func (m *Mailer) Notify(subject, body string) {
	if err := m.Send(subject, body); err != nil {
		m.logger.Error("failed to send notification email", "subject", subject, "error", err)
		return
	}
	m.logger.Debug("notification email sent", "subject", subject)
}

// Send builds and delivers the message, returning any SMTP error.
func (m *Mailer) Send(subject, body string) error {
	to := m.config.Recipients()
	if len(to) == 0 {
		return errors.New("no notification recipients configured")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if m.Sender != nil {
		return gomail.Send(m.Sender, msg)
	}
	return m.dialer.DialAndSend(msg)
}
