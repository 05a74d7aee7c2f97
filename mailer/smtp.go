package mailer

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SMTPProvider sends emails through an SMTP submission endpoint.
type SMTPProvider struct {
	dialer *gomail.Dialer
}

// NewSMTPProvider creates a provider that submits mail over authenticated
// SMTP (STARTTLS on the standard submission port).
func NewSMTPProvider(host string, port int, username, password string) *SMTPProvider {
	return &SMTPProvider{
		dialer: gomail.NewDialer(host, port, username, password),
	}
}

// Name returns the provider name.
func (s *SMTPProvider) Name() string {
	return "smtp"
}

// Send submits an email over SMTP. SMTP gives back no provider message ID,
// so a locally generated one is returned for log correlation.
func (s *SMTPProvider) Send(msg Message) (SendResult, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}

	return SendResult{ProviderMessageID: fmt.Sprintf("smtp-%s", uuid.New().String())}, nil
}
