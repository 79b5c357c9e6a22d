package rest

import (
	"context"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

// Tasks is the slice of core.Service the HTTP layer drives.
type Tasks interface {
	core.Pinger

	CreateTask(ctx context.Context, ownerID string, in core.TaskInput) (core.Task, error)
	GetTask(ctx context.Context, ownerID, id string) (core.Task, error)
	ListTasks(ctx context.Context, ownerID string, f core.ListTasksFilter) ([]core.TaskWithReminders, error)
	UpdateTask(ctx context.Context, ownerID, id string, in core.TaskInput) (core.Task, error)
	SetStatus(ctx context.Context, ownerID, id, status string) (core.Task, error)
	DeleteTask(ctx context.Context, ownerID, id string) error

	ScheduleReminder(ctx context.Context, ownerID, taskID, date, clock string) (core.Reminder, error)
	ListReminders(ctx context.Context, ownerID, taskID string) ([]core.Reminder, error)

	SetContact(ctx context.Context, ownerID, address string) error
	Contact(ctx context.Context, ownerID string) (string, error)
}
