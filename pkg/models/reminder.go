package models

// Reminder is a daily message owned by a user inside a group.
// Time is a local wall-clock "HH:MM" in the configured zone, no date.
type Reminder struct {
	ID      int64  `json:"id" db:"id"`
	UserID  int64  `json:"user_id" db:"user_id"`
	GroupID int64  `json:"group_id" db:"group_id"`
	Time    string `json:"time" db:"time"`
	Text    string `json:"text" db:"text"`

	// Filled by joins, not stored on the reminders table
	ChatID   int64  `json:"chat_id,omitempty" db:"chat_id"`
	Username string `json:"username,omitempty" db:"username"`
}
