package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cmwillett/wapiti-sub000/internal/entity"
)

type reminderRepository struct {
	db *sql.DB
}

func NewReminderRepository(db *sql.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

func (r *reminderRepository) Create(ctx context.Context, reminder *entity.TaskReminder) error {
	query := `
		INSERT INTO task_reminders (owner_id, text, remind_at, acknowledged, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		reminder.OwnerID,
		reminder.Text,
		reminder.RemindAt,
		reminder.Acknowledged,
		reminder.Completed,
		now,
		now,
	).Scan(&reminder.ID)

	if err != nil {
		return fmt.Errorf("failed to create reminder: %v", err)
	}

	reminder.CreatedAt = now
	reminder.UpdatedAt = now
	return nil
}

func (r *reminderRepository) GetByID(ctx context.Context, id int64) (*entity.TaskReminder, error) {
	query := `
		SELECT id, owner_id, text, remind_at, acknowledged, completed, created_at, updated_at
		FROM task_reminders
		WHERE id = $1
	`

	var reminder entity.TaskReminder
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&reminder.ID,
		&reminder.OwnerID,
		&reminder.Text,
		&reminder.RemindAt,
		&reminder.Acknowledged,
		&reminder.Completed,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %v", err)
	}

	return &reminder, nil
}

func (r *reminderRepository) GetByOwner(ctx context.Context, ownerID string) ([]*entity.TaskReminder, error) {
	query := `
		SELECT id, owner_id, text, remind_at, acknowledged, completed, created_at, updated_at
		FROM task_reminders
		WHERE owner_id = $1
		ORDER BY remind_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reminders: %v", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

// GetDue returns every unacknowledged, uncompleted reminder whose time has
// arrived, including reminders up to futureTolerance ahead of now to absorb
// clock skew and scan granularity. Stale filtering is the dispatcher's call,
// so past-due reminders are always included here.
func (r *reminderRepository) GetDue(ctx context.Context, now time.Time, futureTolerance time.Duration) ([]*entity.TaskReminder, error) {
	query := `
		SELECT id, owner_id, text, remind_at, acknowledged, completed, created_at, updated_at
		FROM task_reminders
		WHERE NOT acknowledged AND NOT completed AND remind_at <= $1
		ORDER BY remind_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, now.Add(futureTolerance))
	if err != nil {
		return nil, fmt.Errorf("failed to get due reminders: %v", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (r *reminderRepository) GetDueForOwner(ctx context.Context, ownerID string, now time.Time, futureTolerance time.Duration) ([]*entity.TaskReminder, error) {
	query := `
		SELECT id, owner_id, text, remind_at, acknowledged, completed, created_at, updated_at
		FROM task_reminders
		WHERE owner_id = $1 AND NOT acknowledged AND NOT completed AND remind_at <= $2
		ORDER BY remind_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID, now.Add(futureTolerance))
	if err != nil {
		return nil, fmt.Errorf("failed to get due reminders for owner: %v", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

// Acknowledge is the idempotency point for racing dispatch passes: only the
// caller whose UPDATE actually flips the flag sees rows affected.
func (r *reminderRepository) Acknowledge(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE task_reminders
		SET acknowledged = TRUE, updated_at = $2
		WHERE id = $1 AND acknowledged = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge reminder: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}

	return affected == 1, nil
}

func (r *reminderRepository) Complete(ctx context.Context, id int64) error {
	query := `
		UPDATE task_reminders
		SET completed = TRUE, updated_at = $2
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to complete reminder: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if affected == 0 {
		return entity.ErrReminderNotFound
	}

	return nil
}

// Snooze moves the reminder forward and resets acknowledgment so the next
// scan pass picks it up again at the new time.
func (r *reminderRepository) Snooze(ctx context.Context, id int64, until time.Time) error {
	query := `
		UPDATE task_reminders
		SET remind_at = $2, acknowledged = FALSE, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, until, time.Now())
	if err != nil {
		return fmt.Errorf("failed to snooze reminder: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if affected == 0 {
		return entity.ErrReminderNotFound
	}

	return nil
}

func (r *reminderRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM task_reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if affected == 0 {
		return entity.ErrReminderNotFound
	}

	return nil
}

func scanReminders(rows *sql.Rows) ([]*entity.TaskReminder, error) {
	var reminders []*entity.TaskReminder
	for rows.Next() {
		var reminder entity.TaskReminder
		if err := rows.Scan(
			&reminder.ID,
			&reminder.OwnerID,
			&reminder.Text,
			&reminder.RemindAt,
			&reminder.Acknowledged,
			&reminder.Completed,
			&reminder.CreatedAt,
			&reminder.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %v", err)
		}
		reminders = append(reminders, &reminder)
	}
	return reminders, rows.Err()
}
