package delivery

import (
	"context"
	"fmt"
	"log/slog"

	mg "github.com/mailgun/mailgun-go/v5"

	"github.com/structmail/structmail/internal/config"
)

// MailgunSender delivers messages through the Mailgun API.
type MailgunSender struct {
	logger *slog.Logger
	cfg    config.MailgunConfig
	from   string
}

func NewMailgunSender(log *slog.Logger, cfg config.DeliveryConfig) *MailgunSender {
	return &MailgunSender{
		logger: log.With(slog.String("adapter", "mailgun")),
		cfg:    cfg.Mailgun,
		from:   cfg.From,
	}
}

func (s *MailgunSender) Send(ctx context.Context, msg OutboundMessage) (string, error) {
	client := mg.NewMailgun(s.cfg.APIKey)
	if s.cfg.Region == "eu" {
		client.SetAPIBase(mg.APIBaseEU)
	}

	from := msg.From
	if from == "" {
		from = s.from
	}
	if from == "" {
		from = fmt.Sprintf("noreply@%s", s.cfg.Domain)
	}

	m := mg.NewMessage(s.cfg.Domain, from, msg.Subject, msg.Body, msg.To...)
	if msg.HTML {
		m.SetHTML(msg.Body)
	}
	if msg.InReplyTo != "" {
		m.AddHeader("In-Reply-To", msg.InReplyTo)
	}

	resp, err := client.Send(ctx, m)
	if err != nil {
		return "", fmt.Errorf("mailgun send: %w", err)
	}
	return resp.ID, nil
}

// NewSender picks the configured delivery provider.
func NewSender(log *slog.Logger, cfg config.DeliveryConfig) (Sender, error) {
	switch cfg.Provider {
	case "", "smtp":
		return NewSMTPSender(log, cfg), nil
	case "mailgun":
		return NewMailgunSender(log, cfg), nil
	default:
		return nil, fmt.Errorf("unknown delivery provider: %s", cfg.Provider)
	}
}
