package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

// Breaker stops calling a failing sink for a while. Rejected calls fail
// with core.ErrDependency, so the reminder is retried later.
type Breaker struct {
	next core.Notifier
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(log *slog.Logger, name string, next core.Notifier, cfg BreakerConfig) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notify-" + name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about the sink
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("notifier circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Send(ctx context.Context, n core.Notification) (string, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Send(ctx, n)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: notifier unavailable: %v", core.ErrDependency, err)
		}
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}
