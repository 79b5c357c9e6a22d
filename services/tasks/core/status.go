package core

import (
	"fmt"
	"strings"
	"time"
)

func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case NotStarted:
		return NotStarted, nil
	case Ongoing:
		return Ongoing, nil
	case Completed:
		return Completed, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, s)
	}
}

func (st TaskStatus) Valid() bool {
	switch st {
	case NotStarted, Ongoing, Completed:
		return true
	}
	return false
}

// SetStatus moves the task to st. No state is terminal. On an invalid status
// the task is left untouched.
func (t *Task) SetStatus(st TaskStatus, at time.Time) error {
	if !st.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, st)
	}
	t.Status = st
	t.UpdatedAt = at
	return nil
}
