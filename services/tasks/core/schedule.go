package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// deadlineLayouts without a zone are read in the reference location.
var deadlineLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDeadline accepts an RFC 3339 timestamp, or a local date-time such as
// the HTML datetime-local value "2024-06-01T09:00" interpreted in loc.
func ParseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDeadline)
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q", ErrInvalidDeadline, s)
}

// CombineSchedule joins a calendar date (YYYY-MM-DD) and a 24-hour wall-clock
// time (HH:MM) into one instant in loc.
func CombineSchedule(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fieldErr("date", fmt.Errorf("%w: date %q", ErrInvalidSchedule, date))
	}
	c, err := time.Parse(TimeLayout, strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fieldErr("time", fmt.Errorf("%w: time %q", ErrInvalidSchedule, clock))
	}

	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc), nil
}

// ScheduleReminder attaches a reminder to one of the caller's tasks. A fire
// instant in the past is accepted; the dispatcher delivers it on its next pass.
func (s *Service) ScheduleReminder(ctx context.Context, ownerID, taskID, date, clock string) (Reminder, error) {
	if err := authorize(ownerID); err != nil {
		return Reminder{}, err
	}

	fireAt, err := CombineSchedule(date, clock, s.loc)
	if err != nil {
		return Reminder{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.GetTask(ctx, ownerID, taskID); err != nil {
		return Reminder{}, dependency("get task", err)
	}

	now := s.now()
	r := Reminder{
		ID:            uuid.NewString(),
		TaskID:        taskID,
		FireAt:        fireAt,
		State:         DeliveryPending,
		NextAttemptAt: fireAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	out, err := s.db.CreateReminder(ctx, r)
	if err != nil {
		return Reminder{}, dependency("create reminder", err)
	}

	if s.waker != nil && !out.FireAt.After(now) {
		s.waker.Wake()
	}
	return out, nil
}

func (s *Service) ListReminders(ctx context.Context, ownerID, taskID string) ([]Reminder, error) {
	if err := authorize(ownerID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.GetTask(ctx, ownerID, taskID); err != nil {
		return nil, dependency("get task", err)
	}

	out, err := s.db.ListReminders(ctx, taskID)
	return out, dependency("list reminders", err)
}
