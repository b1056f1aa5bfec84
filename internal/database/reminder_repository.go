package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/tagbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ReminderRepository handles database operations for reminders.
// A (user, group) pair owns at most one reminder.
type ReminderRepository struct {
	db *sqlx.DB
}

// NewReminderRepository creates a new repository instance
func NewReminderRepository(db *sqlx.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Upsert stores the reminder for (rem.UserID, rem.GroupID). If the pair already
// had one, its time and text are replaced and replaced is true. rem.ID is set.
func (r *ReminderRepository) Upsert(ctx context.Context, rem *models.Reminder) (replaced bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var count int
	err = tx.GetContext(ctx, &count,
		tx.Rebind("SELECT COUNT(*) FROM reminders WHERE user_id = ? AND group_id = ?"),
		rem.UserID, rem.GroupID)
	if err != nil {
		return false, fmt.Errorf("failed to check existing reminder: %w", err)
	}

	query := tx.Rebind(`
		INSERT INTO reminders (user_id, group_id, time, text) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, group_id) DO UPDATE SET
			time = excluded.time,
			text = excluded.text,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`)
	if err = tx.QueryRowxContext(ctx, query, rem.UserID, rem.GroupID, rem.Time, rem.Text).Scan(&rem.ID); err != nil {
		return false, fmt.Errorf("failed to create reminder: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit reminder: %w", err)
	}
	return count > 0, nil
}

// UpdateByOwner replaces time and text in one statement so no reader sees a
// half-updated row. It returns the number of rows changed; zero means the
// pair had no reminder.
func (r *ReminderRepository) UpdateByOwner(ctx context.Context, userID, groupID int64, hhmm, text string) (int64, error) {
	query := r.db.Rebind(`
		UPDATE reminders SET
			time = ?,
			text = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND group_id = ?
	`)
	result, err := r.db.ExecContext(ctx, query, hhmm, text, userID, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to update reminder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// DeleteByOwner removes every reminder of the pair and returns how many were removed
func (r *ReminderRepository) DeleteByOwner(ctx context.Context, userID, groupID int64) (int64, error) {
	query := r.db.Rebind("DELETE FROM reminders WHERE user_id = ? AND group_id = ?")
	result, err := r.db.ExecContext(ctx, query, userID, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reminder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// GetByOwner returns the reminder of a (user, group) pair
func (r *ReminderRepository) GetByOwner(ctx context.Context, userID, groupID int64) (*models.Reminder, error) {
	var rem models.Reminder
	query := r.db.Rebind(`
		SELECT r.id, r.user_id, r.group_id, r.time, r.text, g.chat_id, u.username
		FROM reminders r
		JOIN groups g ON g.id = r.group_id
		JOIN users u ON u.id = r.user_id
		WHERE r.user_id = ? AND r.group_id = ?
	`)
	err := r.db.GetContext(ctx, &rem, query, userID, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &rem, nil
}

// GetDueAt returns all reminders whose stored time equals hhmm, with the
// owning group's chat ID resolved
func (r *ReminderRepository) GetDueAt(ctx context.Context, hhmm string) ([]models.Reminder, error) {
	query := r.db.Rebind(`
		SELECT r.id, r.user_id, r.group_id, r.time, r.text, g.chat_id
		FROM reminders r
		JOIN groups g ON g.id = r.group_id
		WHERE r.time = ?
		ORDER BY r.id
	`)
	var reminders []models.Reminder
	if err := r.db.SelectContext(ctx, &reminders, query, hhmm); err != nil {
		return nil, fmt.Errorf("failed to get due reminders: %w", err)
	}
	return reminders, nil
}

// ListByChat returns the reminders of a chat ordered by time of day
func (r *ReminderRepository) ListByChat(ctx context.Context, chatID int64) ([]models.Reminder, error) {
	query := r.db.Rebind(`
		SELECT r.id, r.user_id, r.group_id, r.time, r.text, g.chat_id, u.username
		FROM reminders r
		JOIN groups g ON g.id = r.group_id
		JOIN users u ON u.id = r.user_id
		WHERE g.chat_id = ?
		ORDER BY r.time, r.id
	`)
	var reminders []models.Reminder
	if err := r.db.SelectContext(ctx, &reminders, query, chatID); err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}
