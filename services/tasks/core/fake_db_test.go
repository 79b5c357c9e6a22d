package core_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

type fakeDB struct {
	mu sync.RWMutex

	tasks     map[string]core.Task
	reminders map[string]core.Reminder
	contacts  map[string]string

	// failures injected by tests
	pingErr    error
	listErr    error
	contactErr error
	// onFindTask runs before FindTask returns, outside the lock
	onFindTask func(id string)
	// findTaskErr fails the n-th FindTask call, counted from 1
	findTaskErr func(n int32) error
	findCalls   atomic.Int32
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		tasks:     make(map[string]core.Task),
		reminders: make(map[string]core.Reminder),
		contacts:  make(map[string]string),
	}
}

func (db *fakeDB) Ping(context.Context) error {
	return db.pingErr
}

func (db *fakeDB) CreateTask(_ context.Context, t core.Task) (core.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return core.Task{}, core.ErrInvalidInput
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.tasks[t.ID] = t
	return t, nil
}

func (db *fakeDB) GetTask(_ context.Context, ownerID, id string) (core.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return core.Task{}, core.ErrTaskNotFound
	}
	return t, nil
}

func (db *fakeDB) FindTask(_ context.Context, id string) (core.Task, error) {
	db.mu.RLock()
	t, ok := db.tasks[id]
	db.mu.RUnlock()

	if db.onFindTask != nil {
		db.onFindTask(id)
	}
	n := db.findCalls.Add(1)
	if db.findTaskErr != nil {
		if err := db.findTaskErr(n); err != nil {
			return core.Task{}, err
		}
	}
	if !ok {
		return core.Task{}, core.ErrTaskNotFound
	}
	return t, nil
}

func (db *fakeDB) ListTasks(_ context.Context, ownerID string, f core.ListTasksFilter) ([]core.Task, error) {
	if db.listErr != nil {
		return nil, db.listErr
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []core.Task{}
	for _, t := range db.tasks {
		if t.OwnerID == ownerID && (f.Status == nil || t.Status == *f.Status) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Deadline.Before(out[j].Deadline)
	})
	if f.Offset >= len(out) {
		return []core.Task{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (db *fakeDB) UpdateTask(_ context.Context, t core.Task) (core.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cur, ok := db.tasks[t.ID]
	if !ok || cur.OwnerID != t.OwnerID {
		return core.Task{}, core.ErrTaskNotFound
	}
	db.tasks[t.ID] = t
	return t, nil
}

func (db *fakeDB) SetTaskStatus(_ context.Context, ownerID, id string, st core.TaskStatus, at time.Time) (core.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return core.Task{}, core.ErrTaskNotFound
	}
	t.Status = st
	t.UpdatedAt = at
	db.tasks[id] = t
	return t, nil
}

func (db *fakeDB) DeleteTask(_ context.Context, ownerID, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return core.ErrTaskNotFound
	}
	delete(db.tasks, id)
	for rid, r := range db.reminders {
		if r.TaskID == id {
			delete(db.reminders, rid)
		}
	}
	return nil
}

func (db *fakeDB) CreateReminder(_ context.Context, r core.Reminder) (core.Reminder, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.tasks[r.TaskID]; !ok {
		return core.Reminder{}, core.ErrTaskNotFound
	}
	db.reminders[r.ID] = r
	return r, nil
}

func (db *fakeDB) ListReminders(_ context.Context, taskID string) ([]core.Reminder, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []core.Reminder{}
	for _, r := range db.reminders {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	sortByFireAt(out)
	return out, nil
}

func (db *fakeDB) ListOwnerReminders(_ context.Context, ownerID string) ([]core.Reminder, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []core.Reminder{}
	for _, r := range db.reminders {
		if t, ok := db.tasks[r.TaskID]; ok && t.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sortByFireAt(out)
	return out, nil
}

func claimable(r core.Reminder, now time.Time) bool {
	if r.FireAt.After(now) {
		return false
	}
	switch r.State {
	case core.DeliveryPending:
		return !r.NextAttemptAt.After(now)
	case core.DeliverySending:
		return r.ClaimExpiresAt != nil && !r.ClaimExpiresAt.After(now)
	}
	return false
}

func (db *fakeDB) DueReminders(_ context.Context, now time.Time, limit int) ([]core.Reminder, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []core.Reminder{}
	for _, r := range db.reminders {
		if claimable(r, now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextAttemptAt.Before(out[j].NextAttemptAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (db *fakeDB) ClaimReminder(_ context.Context, id, token string, now, leaseUntil time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.reminders[id]
	if !ok || !claimable(r, now) {
		return false, nil
	}
	r.State = core.DeliverySending
	r.ClaimToken = token
	r.ClaimExpiresAt = &leaseUntil
	r.UpdatedAt = now
	db.reminders[id] = r
	return true, nil
}

func (db *fakeDB) claimed(id, token string) (core.Reminder, error) {
	r, ok := db.reminders[id]
	if !ok {
		return core.Reminder{}, core.ErrReminderNotFound
	}
	if r.State != core.DeliverySending || r.ClaimToken != token {
		return core.Reminder{}, core.ErrClaimLost
	}
	return r, nil
}

func (db *fakeDB) MarkReminderSent(_ context.Context, id, token, providerMessageID string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, err := db.claimed(id, token)
	if err != nil {
		return err
	}
	r.State = core.DeliverySent
	r.SentAt = &at
	r.ProviderMessageID = providerMessageID
	r.LastError = ""
	r.ClaimExpiresAt = nil
	r.UpdatedAt = at
	db.reminders[id] = r
	return nil
}

func (db *fakeDB) ReleaseReminder(_ context.Context, id, token string, f core.DeliveryFailure) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, err := db.claimed(id, token)
	if err != nil {
		return err
	}
	r.State = f.State
	r.Attempts = f.Attempts
	r.LastError = f.LastError
	r.NextAttemptAt = f.NextAttemptAt
	r.ClaimExpiresAt = nil
	r.UpdatedAt = f.At
	db.reminders[id] = r
	return nil
}

func (db *fakeDB) CancelReminder(_ context.Context, id, token string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, err := db.claimed(id, token)
	if err != nil {
		return err
	}
	r.State = core.DeliveryCanceled
	r.ClaimExpiresAt = nil
	r.UpdatedAt = at
	db.reminders[id] = r
	return nil
}

func (db *fakeDB) ContactAddress(_ context.Context, ownerID string) (string, error) {
	if db.contactErr != nil {
		return "", db.contactErr
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	addr, ok := db.contacts[ownerID]
	if !ok {
		return "", core.ErrRecipientUnresolved
	}
	return addr, nil
}

func (db *fakeDB) SetContactAddress(_ context.Context, ownerID, address string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.contacts[ownerID] = address
	return nil
}

func (db *fakeDB) reminder(id string) core.Reminder {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.reminders[id]
}

func sortByFireAt(rs []core.Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].FireAt.Before(rs[j].FireAt)
	})
}

// recordingNotifier captures every notification it accepts.
type recordingNotifier struct {
	mu    sync.Mutex
	sent  []core.Notification
	err   error
	delay time.Duration
	// panicFor makes Send panic for one recipient
	panicFor string
	calls    atomic.Int32
}

func (n *recordingNotifier) Send(ctx context.Context, note core.Notification) (string, error) {
	n.calls.Add(1)
	if n.panicFor != "" && note.Recipient == n.panicFor {
		panic("sink exploded")
	}
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if n.err != nil {
		return "", n.err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return "msg-" + note.Recipient, nil
}

func (n *recordingNotifier) messages() []core.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.Notification(nil), n.sent...)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingWaker struct{ n atomic.Int32 }

func (w *countingWaker) Wake() { w.n.Add(1) }

var errBoom = errors.New("boom")
