package core

import "time"

type TaskStatus string

const (
	NotStarted TaskStatus = "NOT_STARTED"
	Ongoing    TaskStatus = "ONGOING"
	Completed  TaskStatus = "COMPLETED"
)

type DeliveryState string

const (
	DeliveryPending  DeliveryState = "PENDING"
	DeliverySending  DeliveryState = "SENDING" // claimed by one dispatch attempt
	DeliverySent     DeliveryState = "SENT"
	DeliveryFailed   DeliveryState = "FAILED"
	DeliveryCanceled DeliveryState = "CANCELED"
)

type Task struct {
	ID              string     `db:"id"`
	OwnerID         string     `db:"owner_id"`
	Title           string     `db:"title"`
	Description     string     `db:"description"`
	DurationMinutes int64      `db:"duration_minutes"`
	Deadline        time.Time  `db:"deadline"`
	Status          TaskStatus `db:"status"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

type Reminder struct {
	ID                string        `db:"id"`
	TaskID            string        `db:"task_id"`
	FireAt            time.Time     `db:"fire_at"`
	State             DeliveryState `db:"delivery_state"`
	Attempts          int           `db:"attempts"`
	LastError         string        `db:"last_error"`
	NextAttemptAt     time.Time     `db:"next_attempt_at"`
	ClaimToken        string        `db:"claim_token"`
	ClaimExpiresAt    *time.Time    `db:"claim_expires_at"`
	SentAt            *time.Time    `db:"sent_at"`
	ProviderMessageID string        `db:"provider_message_id"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

// TaskWithReminders is a task together with every reminder attached to it.
type TaskWithReminders struct {
	Task
	Reminders []Reminder
}

// TaskInput carries the primitives submitted by the presentation layer for
// create and edit. Deadline is an ISO timestamp string.
type TaskInput struct {
	Title         string
	Description   string
	DurationValue float64
	DurationUnit  string
	Deadline      string
}

// Notification is one outbound message handed to the notification sink.
// ScheduledAt is advisory; the dispatcher never sends before it.
type Notification struct {
	Recipient   string
	Subject     string
	Body        string
	ScheduledAt time.Time
}

// DeliveryFailure records a failed attempt on a claimed reminder.
type DeliveryFailure struct {
	State         DeliveryState
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	At            time.Time
}
