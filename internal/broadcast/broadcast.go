// Package broadcast sends a text to a group together with mentions of every
// registered member of that group.
package broadcast

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Sender is the part of *tgbotapi.BotAPI used to post messages
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// MemberLister resolves the registered usernames of a chat
type MemberLister interface {
	ListUsernames(ctx context.Context, chatID int64) ([]string, error)
}

// Broadcaster is the single delivery primitive shared by the sweep, one-shot
// jobs and /tagall
type Broadcaster struct {
	sender  Sender
	members MemberLister
	log     *logrus.Logger
}

// New creates a Broadcaster
func New(sender Sender, members MemberLister, log *logrus.Logger) *Broadcaster {
	return &Broadcaster{sender: sender, members: members, log: log}
}

// Deliver sends one message to chatID made of the members' mentions followed by text.
// Failures are returned to the caller and never retried.
func (b *Broadcaster) Deliver(ctx context.Context, chatID int64, text string) error {
	mentions, err := b.Mentions(ctx, chatID)
	if err != nil {
		return err
	}

	body := ComposeMessage(mentions, text)
	if body == "" {
		b.log.WithField("chat_id", chatID).Debug("Nothing to deliver: no members and empty text")
		return nil
	}

	if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, body)); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}

	b.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"length":  len(body),
	}).Debug("Delivered broadcast")
	return nil
}

// Mentions returns the space-joined, deduplicated mentions of a chat's members
func (b *Broadcaster) Mentions(ctx context.Context, chatID int64) (string, error) {
	usernames, err := b.members.ListUsernames(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch users of chat %d: %w", chatID, err)
	}
	return FormatMentions(usernames), nil
}

// NormalizeUsername makes sure a handle starts with a single "@"
func NormalizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if username == "" || strings.HasPrefix(username, "@") {
		return username
	}
	return "@" + username
}

// FormatMentions normalizes the usernames, drops exact duplicates keeping the
// first occurrence, and joins them with single spaces
func FormatMentions(usernames []string) string {
	seen := make(map[string]bool, len(usernames))
	mentions := make([]string, 0, len(usernames))
	for _, u := range usernames {
		m := NormalizeUsername(u)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		mentions = append(mentions, m)
	}
	return strings.Join(mentions, " ")
}

// ComposeMessage joins mentions and text with a space, omitting whichever is empty
func ComposeMessage(mentions, text string) string {
	switch {
	case mentions == "":
		return text
	case text == "":
		return mentions
	default:
		return mentions + " " + text
	}
}
