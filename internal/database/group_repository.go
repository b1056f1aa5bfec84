package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/tagbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// GroupRepository handles database operations for groups
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates a new repository instance
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Ensure inserts the group if no row exists for chatID yet.
// It reports whether a new row was written. An existing name is never overwritten.
func (r *GroupRepository) Ensure(ctx context.Context, chatID int64, name string) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO groups (chat_id, name) VALUES (?, ?)
		ON CONFLICT (chat_id) DO NOTHING
	`)
	result, err := r.db.ExecContext(ctx, query, chatID, name)
	if err != nil {
		return false, fmt.Errorf("failed to ensure group %d: %w", chatID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// GetByChatID returns a group by its Telegram chat ID
func (r *GroupRepository) GetByChatID(ctx context.Context, chatID int64) (*models.Group, error) {
	var group models.Group
	query := r.db.Rebind("SELECT id, chat_id, name FROM groups WHERE chat_id = ?")
	err := r.db.GetContext(ctx, &group, query, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group by chat ID: %w", err)
	}
	return &group, nil
}

// GetByID returns a group by its surrogate key
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	var group models.Group
	query := r.db.Rebind("SELECT id, chat_id, name FROM groups WHERE id = ?")
	err := r.db.GetContext(ctx, &group, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group by ID: %w", err)
	}
	return &group, nil
}
