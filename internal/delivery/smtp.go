package delivery

import (
	"context"
	"fmt"
	"log/slog"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	mail "github.com/wneessen/go-mail"

	"github.com/structmail/structmail/internal/config"
)

// SMTPSender delivers messages over a configured SMTP relay.
type SMTPSender struct {
	logger *slog.Logger
	cfg    config.SMTPConfig
	from   string
}

func NewSMTPSender(log *slog.Logger, cfg config.DeliveryConfig) *SMTPSender {
	return &SMTPSender{
		logger: log.With(slog.String("adapter", "smtp")),
		cfg:    cfg.SMTP,
		from:   cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg OutboundMessage) (string, error) {
	from := msg.From
	if from == "" {
		from = s.from
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return "", fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return "", fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	if msg.InReplyTo != "" {
		m.SetGenHeader(mail.HeaderInReplyTo, msg.InReplyTo)
		m.SetGenHeader(mail.HeaderReferences, msg.InReplyTo)
	}
	if msg.HTML {
		m.SetBodyString(mail.TypeTextHTML, msg.Body)
		// Plain-text alternative so text-only clients still see the content.
		if alt, err := htmltomarkdown.ConvertString(msg.Body); err == nil {
			m.AddAlternativeString(mail.TypeTextPlain, alt)
		}
	} else {
		m.SetBodyString(mail.TypeTextPlain, msg.Body)
	}
	m.SetMessageID()

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	}
	switch s.cfg.Security {
	case "tls":
		opts = append(opts, mail.WithSSLPort(false), mail.WithTLSPolicy(mail.TLSMandatory))
	case "starttls":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return "", fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}

	return m.GetMessageID(), nil
}
