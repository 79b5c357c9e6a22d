package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

const (
	ProviderLog      = "log"
	ProviderMailgun  = "mailgun"
	ProviderSendGrid = "sendgrid"
)

type MailgunConfig struct {
	Domain  string `yaml:"domain" env:"MAILGUN_DOMAIN"`
	APIKey  string `yaml:"api_key" env:"MAILGUN_API_KEY"`
	APIBase string `yaml:"api_base" env:"MAILGUN_API_BASE"`
}

type SendGridConfig struct {
	APIKey  string `yaml:"api_key" env:"SENDGRID_API_KEY"`
	BaseURL string `yaml:"base_url" env:"SENDGRID_BASE_URL"`
}

type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures" env:"NOTIFY_BREAKER_MAX_FAILURES" env-default:"5"`
	OpenTimeout time.Duration `yaml:"open_timeout" env:"NOTIFY_BREAKER_OPEN_TIMEOUT" env-default:"30s"`
}

type Config struct {
	Provider string         `yaml:"provider" env:"NOTIFY_PROVIDER" env-default:"log" validate:"oneof=log mailgun sendgrid"`
	From     string         `yaml:"from" env:"NOTIFY_FROM" env-default:"reminders@localhost"`
	Mailgun  MailgunConfig  `yaml:"mailgun"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
	Breaker  BreakerConfig  `yaml:"breaker"`
}

// New builds the configured sink behind a circuit breaker.
func New(log *slog.Logger, cfg Config) (*Breaker, error) {
	var (
		sink core.Notifier
		err  error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderLog:
		sink = NewLog(log)
	case ProviderMailgun:
		sink, err = NewMailgun(log, cfg.From, cfg.Mailgun)
	case ProviderSendGrid:
		sink, err = NewSendGrid(log, cfg.From, cfg.SendGrid)
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	log.Info("notification sink ready", "provider", cfg.Provider)
	return NewBreaker(log, cfg.Provider, sink, cfg.Breaker), nil
}
