package models

// User is a group member that gets mentioned in broadcasts.
// Usernames are scoped to a chat: the same handle in two groups is two rows.
type User struct {
	ID       int64  `json:"id" db:"id"`
	ChatID   int64  `json:"chat_id" db:"chat_id"` // Telegram chat the member belongs to
	Username string `json:"username" db:"username"`
}
