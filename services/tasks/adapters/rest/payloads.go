package rest

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

type TaskIn struct {
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description"`
	DurationValue *float64 `json:"duration_value" validate:"required,gte=0"`
	DurationUnit  string   `json:"duration_unit" validate:"required"`
	Deadline      string   `json:"deadline" validate:"required"`
}

func (in TaskIn) Input() core.TaskInput {
	var value float64
	if in.DurationValue != nil {
		value = *in.DurationValue
	}
	return core.TaskInput{
		Title:         in.Title,
		Description:   in.Description,
		DurationValue: value,
		DurationUnit:  in.DurationUnit,
		Deadline:      in.Deadline,
	}
}

type StatusIn struct {
	Status string `json:"status" validate:"required"`
}

// ReminderIn is a calendar date (YYYY-MM-DD) and a wall-clock time (HH:MM).
type ReminderIn struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Time string `json:"time" validate:"required,datetime=15:04"`
}

type ContactIn struct {
	Email string `json:"email" validate:"required,email"`
}

type TaskOut struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	DurationMinutes int64         `json:"duration_minutes"`
	DurationDisplay string        `json:"duration_display"`
	Deadline        time.Time     `json:"deadline"`
	Status          string        `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Reminders       []ReminderOut `json:"reminders,omitempty"`
}

type ReminderOut struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	FireAt    time.Time  `json:"fire_at"`
	State     string     `json:"state"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

func NewTaskOut(t core.Task) TaskOut {
	return TaskOut{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		DurationMinutes: t.DurationMinutes,
		DurationDisplay: core.FormatDuration(t.DurationMinutes),
		Deadline:        t.Deadline,
		Status:          string(t.Status),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func NewReminderOut(r core.Reminder) ReminderOut {
	return ReminderOut{
		ID:        r.ID,
		TaskID:    r.TaskID,
		FireAt:    r.FireAt,
		State:     string(r.State),
		Attempts:  r.Attempts,
		LastError: r.LastError,
		SentAt:    r.SentAt,
	}
}

func NewTaskListOut(items []core.TaskWithReminders) []TaskOut {
	out := make([]TaskOut, 0, len(items))
	for _, it := range items {
		t := NewTaskOut(it.Task)
		for _, r := range it.Reminders {
			t.Reminders = append(t.Reminders, NewReminderOut(r))
		}
		out = append(out, t)
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a decoded payload and reports the first failing field as
// a core.FieldError.
func Validate(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		field, kind := invalidKind(ve[0].Field())
		return &core.FieldError{Field: field, Err: kind}
	}
	return core.ErrInvalidInput
}

func invalidKind(field string) (string, error) {
	switch field {
	case "title":
		return field, core.ErrInvalidTitle
	case "duration_value", "duration_unit":
		return "duration", core.ErrInvalidDuration
	case "deadline":
		return field, core.ErrInvalidDeadline
	case "status":
		return field, core.ErrInvalidStatus
	case "date", "time":
		return field, core.ErrInvalidSchedule
	case "email":
		return field, core.ErrInvalidContact
	}
	return field, core.ErrInvalidInput
}
