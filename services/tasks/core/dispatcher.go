package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const reminderSubject = "Reminder"

type DispatcherConfig struct {
	Interval     time.Duration
	BatchSize    int
	Concurrency  int
	StoreTimeout time.Duration
	SendTimeout  time.Duration
	// ClaimTTL bounds how long a claim survives a crashed sender. It must
	// exceed MinClaimTTL.
	ClaimTTL    time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Interval:     30 * time.Second,
		BatchSize:    100,
		Concurrency:  4,
		StoreTimeout: 5 * time.Second,
		SendTimeout:  30 * time.Second,
		ClaimTTL:     2 * time.Minute,
		MaxAttempts:  8,
		BaseBackoff:  30 * time.Second,
		MaxBackoff:   time.Hour,
	}
}

// claimStoreCalls is the number of store calls an attempt makes while it
// holds a claim before the send: claim, two task lookups, recipient lookup.
const claimStoreCalls = 4

// MinClaimTTL is the longest one attempt can hold its claim before the
// notification is out.
func (cfg DispatcherConfig) MinClaimTTL() time.Duration {
	return cfg.SendTimeout + claimStoreCalls*cfg.StoreTimeout
}

func (cfg DispatcherConfig) withDefaults() DispatcherConfig {
	def := DefaultDispatcherConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if floor := cfg.MinClaimTTL(); cfg.ClaimTTL <= floor {
		cfg.ClaimTTL = floor + cfg.StoreTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	return cfg
}

type Outcome string

const (
	OutcomeSent     Outcome = "SENT"
	OutcomeFailed   Outcome = "FAILED"
	OutcomeCanceled Outcome = "CANCELED"
	// OutcomeSkipped means the reminder was not ours to deliver: already
	// sent, or claimed by a concurrent pass.
	OutcomeSkipped Outcome = "SKIPPED"
)

// DeliveryResult is the outcome of one delivery attempt. State is the
// reminder's delivery state after the attempt.
type DeliveryResult struct {
	Outcome Outcome
	State   DeliveryState
	Reason  error
}

// PassStats summarizes one dispatch pass.
type PassStats struct {
	Due      int
	Sent     int
	Retried  int
	Failed   int
	Canceled int
	Skipped  int
}

type Dispatcher struct {
	log      *slog.Logger
	db       DB
	dir      Directory
	notifier Notifier
	cfg      DispatcherConfig
	now      func() time.Time

	wake    chan struct{}
	running atomic.Bool
}

func NewDispatcher(log *slog.Logger, db DB, dir Directory, notifier Notifier, cfg DispatcherConfig, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		log:      log.With("component", "dispatcher"),
		db:       db,
		dir:      dir,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		now:      now,
		wake:     make(chan struct{}, 1),
	}
}

// Wake requests an immediate pass. It never blocks.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Running reports whether Run is active.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// Run performs a pass immediately, then on every tick or wake-up, until ctx
// is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("dispatcher already running")
	}
	defer d.running.Store(false)

	d.log.Info("dispatcher started", "interval", d.cfg.Interval, "batch_size", d.cfg.BatchSize)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		d.logPass(d.RunPass(ctx))

		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

func (d *Dispatcher) logPass(st PassStats) {
	level := slog.LevelDebug
	if st.Sent > 0 || st.Failed > 0 || st.Retried > 0 {
		level = slog.LevelInfo
	}
	d.log.Log(context.Background(), level, "dispatch pass finished",
		"due", st.Due, "sent", st.Sent, "retried", st.Retried, "failed", st.Failed,
		"canceled", st.Canceled, "skipped", st.Skipped)
}

// RunPass delivers every reminder due at the current instant, up to the
// batch size. A failing reminder never stops the others.
func (d *Dispatcher) RunPass(ctx context.Context) PassStats {
	var st PassStats
	if ctx.Err() != nil {
		return st
	}

	qctx, cancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	due, err := d.db.DueReminders(qctx, d.now(), d.cfg.BatchSize)
	cancel()
	if err != nil {
		d.log.Error("list due reminders failed", "error", err)
		return st
	}
	st.Due = len(due)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.cfg.Concurrency)

	for _, r := range due {
		g.Go(func() error {
			res := d.safeDeliver(ctx, r)

			mu.Lock()
			defer mu.Unlock()
			switch res.Outcome {
			case OutcomeSent:
				st.Sent++
			case OutcomeFailed:
				if res.State == DeliveryFailed {
					st.Failed++
				} else {
					st.Retried++
				}
			case OutcomeCanceled:
				st.Canceled++
			default:
				st.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	return st
}

func (d *Dispatcher) safeDeliver(ctx context.Context, r Reminder) (res DeliveryResult) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("reminder delivery panicked", "reminder_id", r.ID, "panic", p)
			res = DeliveryResult{Outcome: OutcomeFailed, State: r.State, Reason: fmt.Errorf("panic: %v", p)}
		}
	}()
	return d.Deliver(ctx, r)
}

// Deliver claims r, resolves its recipient and sends exactly one
// notification. A reminder that is already SENT, or held by another
// attempt, is skipped.
func (d *Dispatcher) Deliver(ctx context.Context, r Reminder) DeliveryResult {
	log := d.log.With("reminder_id", r.ID, "task_id", r.TaskID)

	switch r.State {
	case DeliverySent, DeliveryFailed, DeliveryCanceled:
		return DeliveryResult{Outcome: OutcomeSkipped, State: r.State}
	}
	if r.FireAt.After(d.now()) {
		return DeliveryResult{Outcome: OutcomeSkipped, State: r.State}
	}

	token := uuid.NewString()
	now := d.now()

	sctx, cancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	claimed, err := d.db.ClaimReminder(sctx, r.ID, token, now, now.Add(d.cfg.ClaimTTL))
	cancel()
	if err != nil {
		log.Error("claim reminder failed", "error", err)
		return DeliveryResult{Outcome: OutcomeFailed, State: r.State, Reason: fmt.Errorf("%w: %v", ErrDependency, err)}
	}
	if !claimed {
		log.Debug("reminder claimed elsewhere")
		return DeliveryResult{Outcome: OutcomeSkipped, State: r.State}
	}

	task, err := d.liveTask(ctx, r)
	if errors.Is(err, ErrTaskNotFound) {
		return d.cancel(ctx, log, r, token)
	}
	if err != nil {
		return d.fail(ctx, log, r, token, err)
	}

	cctx, cancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	addr, err := d.dir.ContactAddress(cctx, task.OwnerID)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrRecipientUnresolved) {
			err = fmt.Errorf("%w: %w: %v", ErrRecipientUnresolved, ErrDependency, err)
		}
		return d.fail(ctx, log, r, token, err)
	}

	// The task may have been deleted while the recipient was resolved.
	if _, err := d.liveTask(ctx, r); errors.Is(err, ErrTaskNotFound) {
		return d.cancel(ctx, log, r, token)
	} else if err != nil {
		return d.fail(ctx, log, r, token, err)
	}

	n := Notification{
		Recipient:   addr,
		Subject:     reminderSubject,
		Body:        fmt.Sprintf("You have a reminder for %s", task.Title),
		ScheduledAt: r.FireAt,
	}

	nctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	msgID, err := d.notifier.Send(nctx, n)
	cancel()
	if err != nil {
		return d.fail(ctx, log, r, token, fmt.Errorf("%w: send: %v", ErrDependency, err))
	}

	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.StoreTimeout)
	err = d.db.MarkReminderSent(mctx, r.ID, token, msgID, d.now())
	cancel()
	if err != nil {
		// The message is out; the claim lease keeps other passes away until
		// it expires.
		log.Error("mark reminder sent failed", "error", err, "provider_message_id", msgID)
	} else {
		log.Info("reminder sent", "provider_message_id", msgID, "attempt", r.Attempts+1)
	}
	return DeliveryResult{Outcome: OutcomeSent, State: DeliverySent}
}

func (d *Dispatcher) liveTask(ctx context.Context, r Reminder) (Task, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	defer cancel()

	t, err := d.db.FindTask(ctx, r.TaskID)
	if err != nil && !errors.Is(err, ErrTaskNotFound) {
		return Task{}, fmt.Errorf("%w: find task: %v", ErrDependency, err)
	}
	return t, err
}

func (d *Dispatcher) cancel(ctx context.Context, log *slog.Logger, r Reminder, token string) DeliveryResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.StoreTimeout)
	defer cancel()

	err := d.db.CancelReminder(ctx, r.ID, token, d.now())
	if err != nil && !errors.Is(err, ErrReminderNotFound) && !errors.Is(err, ErrClaimLost) {
		log.Warn("cancel reminder failed", "error", err)
	}
	log.Debug("reminder canceled, task no longer exists")
	return DeliveryResult{Outcome: OutcomeCanceled, State: DeliveryCanceled}
}

func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, r Reminder, token string, cause error) DeliveryResult {
	attempts := r.Attempts + 1
	now := d.now()

	f := DeliveryFailure{
		State:         DeliveryPending,
		Attempts:      attempts,
		LastError:     cause.Error(),
		NextAttemptAt: now.Add(d.Backoff(attempts)),
		At:            now,
	}
	switch {
	case ctx.Err() != nil:
		// Shutdown interrupted the attempt; it does not count.
		f.Attempts = r.Attempts
		f.NextAttemptAt = now
	case attempts >= d.cfg.MaxAttempts:
		f.State = DeliveryFailed
		f.NextAttemptAt = now
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.StoreTimeout)
	defer cancel()

	if err := d.db.ReleaseReminder(ctx, r.ID, token, f); err != nil {
		log.Error("release reminder failed", "error", err)
	}

	log.Warn("reminder delivery failed",
		"error", cause,
		"attempt", f.Attempts,
		"max_attempts", d.cfg.MaxAttempts,
		"state", f.State,
		"next_attempt_at", f.NextAttemptAt)

	return DeliveryResult{Outcome: OutcomeFailed, State: f.State, Reason: cause}
}

// Backoff is the wait before retry number attempts: base * 2^(attempts-1),
// capped at the configured maximum.
func (d *Dispatcher) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := float64(d.cfg.BaseBackoff) * math.Pow(2, float64(attempts-1))
	if delay > float64(d.cfg.MaxBackoff) {
		return d.cfg.MaxBackoff
	}
	return time.Duration(delay)
}
