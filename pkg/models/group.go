package models

// Group represents a Telegram chat the bot has seen
type Group struct {
	ID     int64  `json:"id" db:"id"`
	ChatID int64  `json:"chat_id" db:"chat_id"` // Telegram chat ID
	Name   string `json:"name" db:"name"`
}
