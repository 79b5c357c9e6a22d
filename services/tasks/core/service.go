package core

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const defaultStoreTimeout = 5 * time.Second

// ServiceConfig tunes the request-scoped operations. Zero values fall back
// to UTC, a 5s store timeout and the wall clock.
type ServiceConfig struct {
	Location     *time.Location
	StoreTimeout time.Duration
	Now          func() time.Time
	Waker        Waker
}

type Service struct {
	db       DB
	dir      Directory
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
	waker    Waker
	validate *validator.Validate
}

func NewService(db DB, dir Directory, cfg ServiceConfig) *Service {
	s := &Service{
		db:       db,
		dir:      dir,
		loc:      cfg.Location,
		timeout:  cfg.StoreTimeout,
		now:      cfg.Now,
		waker:    cfg.Waker,
		validate: validator.New(),
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.timeout <= 0 {
		s.timeout = defaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetWaker attaches the dispatcher after construction.
func (s *Service) SetWaker(w Waker) {
	s.waker = w
}

// Location is the reference timezone for reminder and local deadline input.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.Ping(ctx)
}

func authorize(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrUnauthorized
	}
	return nil
}

// Tasks

func (s *Service) CreateTask(ctx context.Context, ownerID string, in TaskInput) (Task, error) {
	if err := authorize(ownerID); err != nil {
		return Task{}, err
	}

	fields, err := s.validateTaskInput(in)
	if err != nil {
		return Task{}, err
	}

	now := s.now()
	t := Task{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Title:           fields.title,
		Description:     fields.description,
		DurationMinutes: fields.minutes,
		Deadline:        fields.deadline,
		Status:          NotStarted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.db.CreateTask(ctx, t)
	return out, dependency("create task", err)
}

func (s *Service) GetTask(ctx context.Context, ownerID, id string) (Task, error) {
	if err := authorize(ownerID); err != nil {
		return Task{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Task{}, ErrTaskNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	t, err := s.db.GetTask(ctx, ownerID, id)
	return t, dependency("get task", err)
}

// ListTasks returns the owner's tasks matching f, ordered by deadline
// ascending, each with its reminders.
func (s *Service) ListTasks(ctx context.Context, ownerID string, f ListTasksFilter) ([]TaskWithReminders, error) {
	if err := authorize(ownerID); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tasks, err := s.db.ListTasks(ctx, ownerID, f)
	if err != nil {
		return nil, dependency("list tasks", err)
	}
	reminders, err := s.db.ListOwnerReminders(ctx, ownerID)
	if err != nil {
		return nil, dependency("list reminders", err)
	}

	byTask := make(map[string][]Reminder, len(tasks))
	for _, r := range reminders {
		byTask[r.TaskID] = append(byTask[r.TaskID], r)
	}

	out := make([]TaskWithReminders, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskWithReminders{Task: t, Reminders: byTask[t.ID]})
	}
	return out, nil
}

// UpdateTask replaces the editable fields of a task. Status is not touched.
func (s *Service) UpdateTask(ctx context.Context, ownerID, id string, in TaskInput) (Task, error) {
	if err := authorize(ownerID); err != nil {
		return Task{}, err
	}

	fields, err := s.validateTaskInput(in)
	if err != nil {
		return Task{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.db.GetTask(ctx, ownerID, id)
	if err != nil {
		return Task{}, dependency("get task", err)
	}

	cur.Title = fields.title
	cur.Description = fields.description
	cur.DurationMinutes = fields.minutes
	cur.Deadline = fields.deadline
	cur.UpdatedAt = s.now()

	out, err := s.db.UpdateTask(ctx, cur)
	return out, dependency("update task", err)
}

// SetStatus transitions a task to the given status. It has no side effect on
// the task's reminders.
func (s *Service) SetStatus(ctx context.Context, ownerID, id, status string) (Task, error) {
	if err := authorize(ownerID); err != nil {
		return Task{}, err
	}

	st, err := ParseTaskStatus(status)
	if err != nil {
		return Task{}, fieldErr("status", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.db.GetTask(ctx, ownerID, id)
	if err != nil {
		return Task{}, dependency("get task", err)
	}
	if err := cur.SetStatus(st, s.now()); err != nil {
		return Task{}, fieldErr("status", err)
	}

	out, err := s.db.SetTaskStatus(ctx, ownerID, id, cur.Status, cur.UpdatedAt)
	return out, dependency("set task status", err)
}

func (s *Service) DeleteTask(ctx context.Context, ownerID, id string) error {
	if err := authorize(ownerID); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrTaskNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return dependency("delete task", s.db.DeleteTask(ctx, ownerID, id))
}

// Contacts

// SetContact stores the address reminders for ownerID are delivered to.
func (s *Service) SetContact(ctx context.Context, ownerID, address string) error {
	if err := authorize(ownerID); err != nil {
		return err
	}

	address = strings.TrimSpace(address)
	if err := s.validate.Var(address, "required,email"); err != nil {
		return fieldErr("email", ErrInvalidContact)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return dependency("set contact", s.dir.SetContactAddress(ctx, ownerID, address))
}

func (s *Service) Contact(ctx context.Context, ownerID string) (string, error) {
	if err := authorize(ownerID); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	addr, err := s.dir.ContactAddress(ctx, ownerID)
	return addr, dependency("get contact", err)
}

// validation

type taskFields struct {
	title       string
	description string
	minutes     int64
	deadline    time.Time
}

func (s *Service) validateTaskInput(in TaskInput) (taskFields, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return taskFields{}, fieldErr("title", ErrInvalidTitle)
	}

	minutes, err := NormalizeDuration(in.DurationValue, in.DurationUnit)
	if err != nil {
		return taskFields{}, fieldErr("duration", err)
	}

	deadline, err := ParseDeadline(in.Deadline, s.loc)
	if err != nil {
		return taskFields{}, fieldErr("deadline", err)
	}

	return taskFields{
		title:       title,
		description: strings.TrimSpace(in.Description),
		minutes:     minutes,
		deadline:    deadline,
	}, nil
}
