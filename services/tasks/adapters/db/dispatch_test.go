package db

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

type countingNotifier struct {
	mu   sync.Mutex
	sent []core.Notification
}

func (n *countingNotifier) Send(ctx context.Context, msg core.Notification) (string, error) {
	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return "msg-" + msg.Recipient, nil
}

func (n *countingNotifier) messages() []core.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.Notification(nil), n.sent...)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestDispatch_EndToEndOnSQLite(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	clk := &stepClock{now: time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := &countingNotifier{}

	// two dispatchers over one store stand in for two service replicas
	d1 := core.NewDispatcher(log, db, db, n, core.DispatcherConfig{Concurrency: 4}, clk.Now)
	d2 := core.NewDispatcher(log, db, db, n, core.DispatcherConfig{Concurrency: 4}, clk.Now)
	svc := core.NewService(db, db, core.ServiceConfig{Location: berlin, Now: clk.Now, Waker: d1})

	require.NoError(t, svc.SetContact(ctx, "alice", "alice@example.com"))

	task, err := svc.CreateTask(ctx, "alice", core.TaskInput{
		Title:         "Write report",
		DurationValue: 2,
		DurationUnit:  "hours",
		Deadline:      "2024-06-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(120), task.DurationMinutes)

	done, err := svc.SetStatus(ctx, "alice", task.ID, "COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, core.Completed, done.Status)
	assert.Equal(t, task.Title, done.Title)
	assert.True(t, task.Deadline.Equal(done.Deadline))

	r, err := svc.ScheduleReminder(ctx, "alice", task.ID, "2024-05-31", "18:00")
	require.NoError(t, err)
	// 18:00 CEST
	wantFire := time.Date(2024, 5, 31, 16, 0, 0, 0, time.UTC)
	assert.True(t, r.FireAt.Equal(wantFire), "fire_at %s", r.FireAt)
	assert.Equal(t, core.DeliveryPending, r.State)

	// one second before the fire instant nothing is due
	clk.Set(wantFire.Add(-time.Second))
	assert.Equal(t, core.PassStats{}, d1.RunPass(ctx))
	assert.Empty(t, n.messages())

	clk.Set(wantFire.Add(30 * time.Second))

	var (
		wg    sync.WaitGroup
		stats [2]core.PassStats
	)
	for i, d := range []*core.Dispatcher{d1, d2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats[i] = d.RunPass(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, stats[0].Sent+stats[1].Sent)
	msgs := n.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice@example.com", msgs[0].Recipient)
	assert.Contains(t, msgs[0].Body, "Write report")
	assert.True(t, msgs[0].ScheduledAt.Equal(wantFire))

	rems, err := svc.ListReminders(ctx, "alice", task.ID)
	require.NoError(t, err)
	require.Len(t, rems, 1)
	assert.Equal(t, core.DeliverySent, rems[0].State)
	assert.Equal(t, "msg-alice@example.com", rems[0].ProviderMessageID)
	require.NotNil(t, rems[0].SentAt)

	clk.Set(wantFire.Add(time.Hour))
	assert.Equal(t, core.PassStats{}, d1.RunPass(ctx))
	assert.Equal(t, core.PassStats{}, d2.RunPass(ctx))
	assert.Len(t, n.messages(), 1)
}

func TestDispatch_RetryOnSQLite(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	clk := &stepClock{now: time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := &countingNotifier{}
	d := core.NewDispatcher(log, db, db, n, core.DispatcherConfig{BaseBackoff: time.Minute}, clk.Now)
	svc := core.NewService(db, db, core.ServiceConfig{Now: clk.Now})

	task, err := svc.CreateTask(ctx, "bob", core.TaskInput{
		Title:         "Call back",
		DurationValue: 15,
		DurationUnit:  "minutes",
		Deadline:      "2024-06-01T00:00:00Z",
	})
	require.NoError(t, err)
	_, err = svc.ScheduleReminder(ctx, "bob", task.ID, "2024-05-31", "11:00")
	require.NoError(t, err)

	// no contact yet
	assert.Equal(t, core.PassStats{Due: 1, Retried: 1}, d.RunPass(ctx))

	rems, err := svc.ListReminders(ctx, "bob", task.ID)
	require.NoError(t, err)
	require.Len(t, rems, 1)
	assert.Equal(t, core.DeliveryPending, rems[0].State)
	assert.Equal(t, 1, rems[0].Attempts)
	assert.True(t, rems[0].NextAttemptAt.Equal(clk.Now().Add(time.Minute)))

	require.NoError(t, svc.SetContact(ctx, "bob", "bob@example.com"))
	assert.Equal(t, core.PassStats{}, d.RunPass(ctx))

	clk.Set(clk.Now().Add(time.Minute))
	assert.Equal(t, core.PassStats{Due: 1, Sent: 1}, d.RunPass(ctx))
	assert.Len(t, n.messages(), 1)
}
