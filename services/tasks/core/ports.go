package core

import (
	"context"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// DB is the persistence boundary. Every task read or write issued on behalf of
// a caller is scoped by owner id; FindTask is reserved for the dispatcher.
type DB interface {
	Pinger

	// tasks
	CreateTask(ctx context.Context, t Task) (Task, error)
	GetTask(ctx context.Context, ownerID, id string) (Task, error)
	FindTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, ownerID string, f ListTasksFilter) ([]Task, error)
	UpdateTask(ctx context.Context, t Task) (Task, error)
	SetTaskStatus(ctx context.Context, ownerID, id string, st TaskStatus, at time.Time) (Task, error)
	// DeleteTask removes the task and all of its reminders atomically.
	DeleteTask(ctx context.Context, ownerID, id string) error

	// reminders
	CreateReminder(ctx context.Context, r Reminder) (Reminder, error)
	ListReminders(ctx context.Context, taskID string) ([]Reminder, error)
	ListOwnerReminders(ctx context.Context, ownerID string) ([]Reminder, error)
	DueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	// ClaimReminder moves a due reminder to SENDING under token. It reports
	// false when another attempt holds or has finished the reminder.
	ClaimReminder(ctx context.Context, id, token string, now, leaseUntil time.Time) (bool, error)
	MarkReminderSent(ctx context.Context, id, token, providerMessageID string, at time.Time) error
	ReleaseReminder(ctx context.Context, id, token string, f DeliveryFailure) error
	CancelReminder(ctx context.Context, id, token string, at time.Time) error
}

// Directory resolves the delivery address of a task owner.
type Directory interface {
	ContactAddress(ctx context.Context, ownerID string) (string, error)
	SetContactAddress(ctx context.Context, ownerID, address string) error
}

// Notifier is the outbound notification sink. It returns the provider's
// message id on acknowledgment.
type Notifier interface {
	Send(ctx context.Context, n Notification) (string, error)
}

// Waker is told that a reminder may already be due.
type Waker interface {
	Wake()
}
