package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

const sendgridEndpoint = "/v3/mail/send"

type SendGrid struct {
	log    *slog.Logger
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGrid(log *slog.Logger, from string, cfg SendGridConfig) (*SendGrid, error) {
	if cfg.APIKey == "" || from == "" {
		return nil, errors.New("invalid sendgrid configuration")
	}

	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + sendgridEndpoint
	}

	return &SendGrid{
		log:    log.With("component", "notify", "provider", ProviderSendGrid),
		client: client,
		from:   mail.NewEmail("Reminders", from),
	}, nil
}

func (s *SendGrid) Send(ctx context.Context, n core.Notification) (string, error) {
	to := mail.NewEmail("", n.Recipient)
	message := mail.NewSingleEmail(s.from, n.Subject, to, n.Body, "")
	if n.ScheduledAt.After(time.Now()) {
		message.SetSendAt(int(n.ScheduledAt.Unix()))
	}

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}

	var id string
	for k, v := range resp.Headers {
		if strings.EqualFold(k, "X-Message-Id") && len(v) > 0 {
			id = v[0]
		}
	}

	s.log.Debug("email accepted", "message_id", id)
	return id, nil
}

var _ core.Notifier = (*SendGrid)(nil)
