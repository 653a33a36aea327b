package presentation

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailNotifier mails the alert through an SMTP relay.
type EmailNotifier struct {
	cfg  SMTPConfig
	send func(addr string, auth smtp.Auth, mail *email.Email) error
}

var _ usecase.Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier constructs an EmailNotifier.
func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	return &EmailNotifier{
		cfg: cfg,
		send: func(addr string, auth smtp.Auth, mail *email.Email) error {
			return mail.Send(addr, auth)
		},
	}
}

// Notify sends message as a plain-text email, its first line used as the subject.
func (n *EmailNotifier) Notify(ctx context.Context, message string) error {
	mail := email.NewEmail()
	mail.From = n.cfg.From
	mail.To = n.cfg.To
	mail.Subject = subjectLine(message)
	mail.Text = []byte(message)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	// net/smtp has no context support, so the send runs aside and ctx only bounds the wait.
	done := make(chan error, 1)
	go func() {
		err := n.send(addr, auth, mail)
		if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
			err = n.send(addr, nil, mail)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return domain.NotificationDeliveryError{Backend: "email", Err: fmt.Errorf("send to %s: %w", addr, err)}
		}
		return nil
	case <-ctx.Done():
		return domain.NotificationDeliveryError{Backend: "email", Err: ctx.Err()}
	}
}

func subjectLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "Ferry availability alert"
	}
	return line
}
