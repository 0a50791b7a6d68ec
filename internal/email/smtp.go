package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // optional - some servers allow unauthenticated relay
	Password string // optional
	From     string // default sender address
	FromName string // optional sender display name
	Timeout  time.Duration
}

// SMTPSender implements Sender using go-mail. TLS is chosen from the port:
// implicit TLS on 465, mandatory STARTTLS on 587 and opportunistic otherwise.
type SMTPSender struct {
	config SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender creates a new SMTP email sender.
func NewSMTPSender(config SMTPConfig, logger *slog.Logger) (*SMTPSender, error) {
	if config.Host == "" {
		return nil, ErrNotConfigured
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{config: config, logger: logger}, nil
}

// Send delivers the email over a fresh SMTP connection.
func (s *SMTPSender) Send(ctx context.Context, email *Email) (string, error) {
	msg, err := s.buildMessage(email)
	if err != nil {
		return "", err
	}

	client, err := mail.NewClient(s.config.Host, s.clientOptions()...)
	if err != nil {
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("smtp: failed to send email",
			"host", s.config.Host,
			"port", s.config.Port,
			"error", err,
		)
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug("smtp: email sent", "to", email.To, "subject", email.Subject)

	// SMTP does not hand back a message ID
	return fmt.Sprintf("smtp-%d", time.Now().UnixNano()), nil
}

func (s *SMTPSender) buildMessage(email *Email) (*mail.Msg, error) {
	msg := mail.NewMsg()

	switch {
	case email.From != "":
		if err := msg.From(email.From); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	case s.config.FromName != "":
		if err := msg.FromFormat(s.config.FromName, s.config.From); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	default:
		if err := msg.From(s.config.From); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	}

	if err := msg.To(email.To...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}

	msg.Subject(email.Subject)

	// Prefer HTML with a text fallback
	switch {
	case email.HTMLBody != "" && email.TextBody != "":
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTMLBody)
	case email.HTMLBody != "":
		msg.SetBodyString(mail.TypeTextHTML, email.HTMLBody)
	default:
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
	}

	for key, value := range email.Headers {
		msg.SetGenHeader(mail.Header(key), value)
	}

	return msg, nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTimeout(s.config.Timeout),
	}

	switch s.config.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		// 25, or 1025 for a local Mailpit
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.config.Username != "" && s.config.Password != "" {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	return opts
}
