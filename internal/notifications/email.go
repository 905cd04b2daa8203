package notifications

import (
	"context"
	"fmt"
	"time"

	"rendezvous/internal/models"

	"github.com/wneessen/go-mail"
)

// MailSender delivers prepared messages over one SMTP session.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
	Timeout  time.Duration
}

// NewSMTPClient builds a go-mail client for cfg. Implicit TLS is used when cfg.SSL
// is set, otherwise STARTTLS is attempted opportunistically.
func NewSMTPClient(cfg SMTPConfig) (*mail.Client, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

// EmailNotifier mails each side of a match about the other.
type EmailNotifier struct {
	sender MailSender
	from   string
}

// NewEmailNotifier returns an EmailNotifier sending from the given address.
func NewEmailNotifier(sender MailSender, from string) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from}
}

func (e *EmailNotifier) NotifyMutualMatch(ctx context.Context, a, b *models.User) error {
	toA, err := e.message(a, b)
	if err != nil {
		recordOutcome("email", err)
		return err
	}
	toB, err := e.message(b, a)
	if err != nil {
		recordOutcome("email", err)
		return err
	}

	err = e.sender.DialAndSendWithContext(ctx, toA, toB)
	if err != nil {
		err = fmt.Errorf("send match emails: %w", err)
	}
	recordOutcome("email", err)
	return err
}

func (e *EmailNotifier) message(recipient, other *models.User) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.from); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", e.from, err)
	}
	if err := m.To(recipient.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", recipient.Email, err)
	}
	m.Subject(MatchSubject)
	m.SetBodyString(mail.TypeTextPlain, MatchBody(other))
	return m, nil
}
