package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/tagbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// UserRepository handles database operations for group members
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure inserts (chatID, username) unless it is already registered.
// The unique constraint makes concurrent calls for the same member safe.
func (r *UserRepository) Ensure(ctx context.Context, chatID int64, username string) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO users (chat_id, username) VALUES (?, ?)
		ON CONFLICT (chat_id, username) DO NOTHING
	`)
	result, err := r.db.ExecContext(ctx, query, chatID, username)
	if err != nil {
		return false, fmt.Errorf("failed to ensure user %s: %w", username, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// GetByChatAndUsername returns the member row for a handle in a chat
func (r *UserRepository) GetByChatAndUsername(ctx context.Context, chatID int64, username string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT id, chat_id, username FROM users WHERE chat_id = ? AND username = ?")
	err := r.db.GetContext(ctx, &user, query, chatID, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Delete removes a member from a chat. Reminders owned by the member go with it.
func (r *UserRepository) Delete(ctx context.Context, chatID int64, username string) (bool, error) {
	query := r.db.Rebind("DELETE FROM users WHERE chat_id = ? AND username = ?")
	result, err := r.db.ExecContext(ctx, query, chatID, username)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListUsernames returns every registered username of a chat in registration order
func (r *UserRepository) ListUsernames(ctx context.Context, chatID int64) ([]string, error) {
	var usernames []string
	query := r.db.Rebind("SELECT username FROM users WHERE chat_id = ? ORDER BY id")
	if err := r.db.SelectContext(ctx, &usernames, query, chatID); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return usernames, nil
}
