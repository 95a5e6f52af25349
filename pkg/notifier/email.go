package notifier

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/ativasaude/guia-api/pkg/logger"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier delivers billing notifications over SMTP.
type EmailNotifier struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	logger *logger.Logger
}

func NewEmailNotifier(cfg SMTPConfig, logger *logger.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

// Send delivers a plain-text message to a single recipient.
func (n *EmailNotifier) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}

	n.logger.Debug("notification email sent", "to", to, "subject", subject)
	return nil
}
