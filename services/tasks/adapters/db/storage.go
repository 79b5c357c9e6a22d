package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

type dialect struct {
	name      string
	precision time.Duration
	// noLimit precedes an OFFSET when no LIMIT is set
	noLimit string
}

var (
	postgresDialect = dialect{name: "postgres", precision: time.Microsecond}
	// SQLite keeps timestamps as text, so they are stored at a fixed width
	// to compare correctly.
	sqliteDialect = dialect{name: "sqlite", precision: time.Second, noLimit: ` LIMIT -1`}
)

type DB struct {
	log     *slog.Logger
	conn    *sqlx.DB
	dialect dialect
}

func New(log *slog.Logger, driver, address string) (*DB, error) {
	var d dialect
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgres":
		driver, d = DriverPostgres, postgresDialect
	case DriverSQLite, "sqlite":
		driver, d = DriverSQLite, sqliteDialect
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	conn, err := sqlx.Connect(driver, address)
	if err != nil {
		log.Error("connection problem", "driver", driver, "error", err)
		return nil, err
	}

	if d == sqliteDialect {
		// one connection: in-memory databases are per connection and writes
		// serialize anyway
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	return &DB{log: log, conn: conn, dialect: d}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) ts(t time.Time) time.Time {
	return t.UTC().Truncate(db.dialect.precision)
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Tasks

const taskColumns = `id, owner_id, title, description, duration_minutes, deadline, status, created_at, updated_at`

func (db *DB) CreateTask(ctx context.Context, t core.Task) (core.Task, error) {
	q := db.conn.Rebind(`
		INSERT INTO tasks(` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := db.conn.ExecContext(ctx, q,
		t.ID, t.OwnerID, strings.TrimSpace(t.Title), strings.TrimSpace(t.Description),
		t.DurationMinutes, db.ts(t.Deadline), string(t.Status), db.ts(t.CreatedAt), db.ts(t.UpdatedAt))
	if err != nil {
		if isCheckViolation(err) {
			return core.Task{}, core.ErrInvalidInput
		}
		return core.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return db.GetTask(ctx, t.OwnerID, t.ID)
}

func (db *DB) GetTask(ctx context.Context, ownerID, id string) (core.Task, error) {
	q := db.conn.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND owner_id = ?`)

	var t core.Task
	if err := db.conn.GetContext(ctx, &t, q, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Task{}, core.ErrTaskNotFound
		}
		return core.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (db *DB) FindTask(ctx context.Context, id string) (core.Task, error) {
	q := db.conn.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)

	var t core.Task
	if err := db.conn.GetContext(ctx, &t, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Task{}, core.ErrTaskNotFound
		}
		return core.Task{}, fmt.Errorf("find task: %w", err)
	}
	return t, nil
}

func (db *DB) ListTasks(ctx context.Context, ownerID string, f core.ListTasksFilter) ([]core.Task, error) {
	var (
		sb   strings.Builder
		args = []any{ownerID}
	)
	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ?`)
	if f.Status != nil {
		sb.WriteString(` AND status = ?`)
		args = append(args, string(*f.Status))
	}
	sb.WriteString(` ORDER BY deadline ASC, created_at ASC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		if f.Limit <= 0 {
			sb.WriteString(db.dialect.noLimit)
		}
		sb.WriteString(` OFFSET ?`)
		args = append(args, f.Offset)
	}

	out := []core.Task{}
	if err := db.conn.SelectContext(ctx, &out, db.conn.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (db *DB) UpdateTask(ctx context.Context, t core.Task) (core.Task, error) {
	q := db.conn.Rebind(`
		UPDATE tasks
		SET title = ?,
		    description = ?,
		    duration_minutes = ?,
		    deadline = ?,
		    updated_at = ?
		WHERE id = ? AND owner_id = ?`)

	res, err := db.conn.ExecContext(ctx, q,
		strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), t.DurationMinutes,
		db.ts(t.Deadline), db.ts(t.UpdatedAt), t.ID, t.OwnerID)
	if err != nil {
		if isCheckViolation(err) {
			return core.Task{}, core.ErrInvalidInput
		}
		return core.Task{}, fmt.Errorf("update task: %w", err)
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return core.Task{}, core.ErrTaskNotFound
	}
	return db.GetTask(ctx, t.OwnerID, t.ID)
}

func (db *DB) SetTaskStatus(ctx context.Context, ownerID, id string, st core.TaskStatus, at time.Time) (core.Task, error) {
	q := db.conn.Rebind(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ?`)

	res, err := db.conn.ExecContext(ctx, q, string(st), db.ts(at), id, ownerID)
	if err != nil {
		if isCheckViolation(err) {
			return core.Task{}, core.ErrInvalidStatus
		}
		return core.Task{}, fmt.Errorf("set task status: %w", err)
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return core.Task{}, core.ErrTaskNotFound
	}
	return db.GetTask(ctx, ownerID, id)
}

// DeleteTask removes the task's reminders and then the task in one
// transaction.
func (db *DB) DeleteTask(ctx context.Context, ownerID, id string) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		delReminders := tx.Rebind(`
			DELETE FROM reminders
			WHERE task_id IN (SELECT id FROM tasks WHERE id = ? AND owner_id = ?)`)
		if _, err := tx.ExecContext(ctx, delReminders, id, ownerID); err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tasks WHERE id = ? AND owner_id = ?`), id, ownerID)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		aff, _ := res.RowsAffected()
		if aff == 0 {
			return core.ErrTaskNotFound
		}
		return nil
	})
}

// Reminders

const reminderColumns = `id, task_id, fire_at, delivery_state, attempts, last_error, next_attempt_at,
	claim_token, claim_expires_at, sent_at, provider_message_id, created_at, updated_at`

func (db *DB) CreateReminder(ctx context.Context, r core.Reminder) (core.Reminder, error) {
	q := db.conn.Rebind(`
		INSERT INTO reminders(id, task_id, fire_at, delivery_state, attempts, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := db.conn.ExecContext(ctx, q,
		r.ID, r.TaskID, db.ts(r.FireAt), string(r.State), r.Attempts,
		db.ts(r.NextAttemptAt), db.ts(r.CreatedAt), db.ts(r.UpdatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Reminder{}, core.ErrTaskNotFound
		}
		return core.Reminder{}, fmt.Errorf("insert reminder: %w", err)
	}
	return db.getReminder(ctx, r.ID)
}

func (db *DB) getReminder(ctx context.Context, id string) (core.Reminder, error) {
	q := db.conn.Rebind(`SELECT ` + reminderColumns + ` FROM reminders WHERE id = ?`)

	var r core.Reminder
	if err := db.conn.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Reminder{}, core.ErrReminderNotFound
		}
		return core.Reminder{}, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (db *DB) ListReminders(ctx context.Context, taskID string) ([]core.Reminder, error) {
	q := db.conn.Rebind(`SELECT ` + reminderColumns + ` FROM reminders WHERE task_id = ? ORDER BY fire_at ASC`)

	out := []core.Reminder{}
	if err := db.conn.SelectContext(ctx, &out, q, taskID); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

func (db *DB) ListOwnerReminders(ctx context.Context, ownerID string) ([]core.Reminder, error) {
	q := db.conn.Rebind(`
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE task_id IN (SELECT id FROM tasks WHERE owner_id = ?)
		ORDER BY fire_at ASC`)

	out := []core.Reminder{}
	if err := db.conn.SelectContext(ctx, &out, q, ownerID); err != nil {
		return nil, fmt.Errorf("list owner reminders: %w", err)
	}
	return out, nil
}

// claimable matches reminders that are due and either pending or held by an
// expired claim.
const claimable = `fire_at <= ? AND (
		(delivery_state = 'PENDING' AND next_attempt_at <= ?)
		OR (delivery_state = 'SENDING' AND claim_expires_at <= ?))`

func (db *DB) DueReminders(ctx context.Context, now time.Time, limit int) ([]core.Reminder, error) {
	if limit <= 0 {
		limit = 100
	}
	q := db.conn.Rebind(`
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE ` + claimable + `
		ORDER BY next_attempt_at ASC
		LIMIT ?`)

	n := db.ts(now)
	out := []core.Reminder{}
	if err := db.conn.SelectContext(ctx, &out, q, n, n, n, limit); err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	return out, nil
}

func (db *DB) ClaimReminder(ctx context.Context, id, token string, now, leaseUntil time.Time) (bool, error) {
	q := db.conn.Rebind(`
		UPDATE reminders
		SET delivery_state = 'SENDING',
		    claim_token = ?,
		    claim_expires_at = ?,
		    updated_at = ?
		WHERE id = ? AND ` + claimable)

	n := db.ts(now)
	res, err := db.conn.ExecContext(ctx, q, token, db.ts(leaseUntil), n, id, n, n, n)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return aff == 1, nil
}

func (db *DB) MarkReminderSent(ctx context.Context, id, token, providerMessageID string, at time.Time) error {
	q := db.conn.Rebind(`
		UPDATE reminders
		SET delivery_state = 'SENT',
		    sent_at = ?,
		    provider_message_id = ?,
		    last_error = '',
		    claim_expires_at = NULL,
		    updated_at = ?
		WHERE id = ? AND claim_token = ? AND delivery_state = 'SENDING'`)

	n := db.ts(at)
	return db.execClaimed(ctx, "mark reminder sent", q, n, providerMessageID, n, id, token)
}

func (db *DB) ReleaseReminder(ctx context.Context, id, token string, f core.DeliveryFailure) error {
	q := db.conn.Rebind(`
		UPDATE reminders
		SET delivery_state = ?,
		    attempts = ?,
		    last_error = ?,
		    next_attempt_at = ?,
		    claim_expires_at = NULL,
		    updated_at = ?
		WHERE id = ? AND claim_token = ? AND delivery_state = 'SENDING'`)

	return db.execClaimed(ctx, "release reminder", q,
		string(f.State), f.Attempts, f.LastError, db.ts(f.NextAttemptAt), db.ts(f.At), id, token)
}

func (db *DB) CancelReminder(ctx context.Context, id, token string, at time.Time) error {
	q := db.conn.Rebind(`
		UPDATE reminders
		SET delivery_state = 'CANCELED',
		    claim_expires_at = NULL,
		    updated_at = ?
		WHERE id = ? AND claim_token = ? AND delivery_state = 'SENDING'`)

	return db.execClaimed(ctx, "cancel reminder", q, db.ts(at), id, token)
}

func (db *DB) execClaimed(ctx context.Context, op, q string, args ...any) error {
	res, err := db.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return core.ErrClaimLost
	}
	return nil
}

// Contacts

func (db *DB) ContactAddress(ctx context.Context, ownerID string) (string, error) {
	q := db.conn.Rebind(`SELECT email FROM contacts WHERE owner_id = ?`)

	var email string
	if err := db.conn.GetContext(ctx, &email, q, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrRecipientUnresolved
		}
		return "", fmt.Errorf("get contact: %w", err)
	}
	return email, nil
}

func (db *DB) SetContactAddress(ctx context.Context, ownerID, address string) error {
	q := db.conn.Rebind(`
		INSERT INTO contacts(owner_id, email, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET email = excluded.email, updated_at = excluded.updated_at`)

	if _, err := db.conn.ExecContext(ctx, q, ownerID, address, db.ts(time.Now())); err != nil {
		return fmt.Errorf("set contact: %w", err)
	}
	return nil
}

var (
	_ core.DB        = (*DB)(nil)
	_ core.Directory = (*DB)(nil)
)

// constraint helpers

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var liteErr sqlite3.Error
	return errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	var liteErr sqlite3.Error
	return errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintCheck
}
