package reminder

import (
	"context"
	"strings"

	"github.com/example/tagbot/internal/broadcast"
	"github.com/example/tagbot/internal/database"
	"github.com/sirupsen/logrus"
)

// DefaultGroupName is stored when a chat has neither a title nor a username
const DefaultGroupName = "Unnamed Group"

// Interaction describes who wrote where
type Interaction struct {
	ChatID       int64
	ChatTitle    string
	ChatUsername string
	Username     string // sender's handle, with or without "@"
}

// Registrar records groups and members as the bot observes them
type Registrar struct {
	groups *database.GroupRepository
	users  *database.UserRepository
	log    *logrus.Logger
}

// NewRegistrar creates a Registrar
func NewRegistrar(groups *database.GroupRepository, users *database.UserRepository, log *logrus.Logger) *Registrar {
	return &Registrar{groups: groups, users: users, log: log}
}

// Register makes sure the chat and the sender exist. Errors are only logged.
// Senders without a handle cannot be mentioned and are not stored.
func (r *Registrar) Register(ctx context.Context, in Interaction) {
	entry := r.log.WithField("chat_id", in.ChatID)

	created, err := r.groups.Ensure(ctx, in.ChatID, GroupName(in.ChatTitle, in.ChatUsername))
	if err != nil {
		entry.WithError(err).Error("Failed to register group")
	} else if created {
		entry.Info("Registered new group")
	}

	username := broadcast.NormalizeUsername(in.Username)
	if username == "" {
		return
	}
	created, err = r.users.Ensure(ctx, in.ChatID, username)
	if err != nil {
		entry.WithError(err).WithField("username", username).Error("Failed to register user")
	} else if created {
		entry.WithField("username", username).Info("Registered new user")
	}
}

// GroupName picks the chat title, then the chat username, then a fixed fallback
func GroupName(title, username string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if u := strings.TrimSpace(username); u != "" {
		return u
	}
	return DefaultGroupName
}
