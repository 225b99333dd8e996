package utils

import (
	"fmt"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SendResult is the delivery provider's answer for one message
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
}

// MailService is the opaque delivery contract the rest of the app sends through
type MailService interface {
	Send(to, subject, htmlBody, textBody string) (SendResult, error)
}

// SMTPMailer delivers messages over a plain SMTP relay
type SMTPMailer struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

func NewSMTPMailer(host string, port int, username, password, fromName, fromEmail string) *SMTPMailer {
	return &SMTPMailer{
		Host:      host,
		Port:      port,
		Username:  username,
		Password:  password,
		FromName:  fromName,
		FromEmail: fromEmail,
	}
}

func (m *SMTPMailer) Send(to, subject, htmlBody, textBody string) (SendResult, error) {
	if err := checkmail.ValidateFormat(to); err != nil {
		return SendResult{}, fmt.Errorf("invalid recipient address %q: %w", to, err)
	}

	messageID := uuid.New().String()

	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", m.FromName, m.FromEmail))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@uplinex>", messageID))

	if textBody != "" {
		msg.SetBody("text/plain", textBody)
		msg.AddAlternative("text/html", htmlBody)
	} else {
		msg.SetBody("text/html", htmlBody)
	}

	d := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := d.DialAndSend(msg); err != nil {
		return SendResult{}, fmt.Errorf("error sending email: %w", err)
	}

	return SendResult{Success: true, MessageID: messageID}, nil
}
