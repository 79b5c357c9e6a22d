package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

type Mailgun struct {
	log  *slog.Logger
	mg   *mailgun.MailgunImpl
	from string
}

func NewMailgun(log *slog.Logger, from string, cfg MailgunConfig) (*Mailgun, error) {
	if cfg.Domain == "" || cfg.APIKey == "" || from == "" {
		return nil, errors.New("invalid mailgun configuration")
	}

	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}

	return &Mailgun{
		log:  log.With("component", "notify", "provider", ProviderMailgun),
		mg:   mg,
		from: from,
	}, nil
}

func (s *Mailgun) Send(ctx context.Context, n core.Notification) (string, error) {
	m := s.mg.NewMessage(s.from, n.Subject, n.Body, n.Recipient)
	if n.ScheduledAt.After(time.Now()) {
		m.SetDeliveryTime(n.ScheduledAt)
	}

	_, id, err := s.mg.Send(ctx, m)
	if err != nil {
		return "", fmt.Errorf("mailgun send: %w", err)
	}

	s.log.Debug("email queued", "message_id", id)
	return id, nil
}
