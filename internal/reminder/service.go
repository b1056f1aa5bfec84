// Package reminder implements the reminder and membership commands on top of
// the record store and the dispatch engine.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/tagbot/internal/broadcast"
	"github.com/example/tagbot/internal/database"
	"github.com/example/tagbot/internal/scheduler"
	"github.com/example/tagbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// EditedPrefix marks the one-shot delivery that follows an edit
const EditedPrefix = "Edited reminder: "

// MemberChecker is the part of *tgbotapi.BotAPI used for role checks
type MemberChecker interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Dispatcher registers and retracts one-shot deliveries
type Dispatcher interface {
	ScheduleOnce(rem models.Reminder, text string) error
	Retract(reminderID int64)
}

// Actor is the user invoking a command in a chat
type Actor struct {
	ChatID   int64
	UserID   int64  // Telegram user ID, used for the role check
	Username string // Telegram handle, used to find the member row
}

// Service runs the reminder and member commands
type Service struct {
	groups     *database.GroupRepository
	users      *database.UserRepository
	reminders  *database.ReminderRepository
	members    MemberChecker
	dispatcher Dispatcher
	loc        *time.Location
	log        *logrus.Logger
	now        func() time.Time
}

// NewService creates a Service
func NewService(
	groups *database.GroupRepository,
	users *database.UserRepository,
	reminders *database.ReminderRepository,
	members MemberChecker,
	dispatcher Dispatcher,
	loc *time.Location,
	log *logrus.Logger,
) *Service {
	return &Service{
		groups:     groups,
		users:      users,
		reminders:  reminders,
		members:    members,
		dispatcher: dispatcher,
		loc:        loc,
		log:        log,
		now:        time.Now,
	}
}

// IsAdmin checks the live chat role of the actor
func (s *Service) IsAdmin(actor Actor) (bool, error) {
	member, err := s.members.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: actor.ChatID, UserID: actor.UserID},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get chat member: %w", err)
	}
	return member.IsAdministrator() || member.IsCreator(), nil
}

func (s *Service) authorize(actor Actor) (Result, bool) {
	ok, err := s.IsAdmin(actor)
	if err != nil {
		s.log.WithError(err).WithField("chat_id", actor.ChatID).Warn("Role check failed")
		return Result{Outcome: OutcomePermissionDenied, Err: err}, false
	}
	if !ok {
		return Result{Outcome: OutcomePermissionDenied}, false
	}
	return Result{}, true
}

// owner resolves the member and group rows of the actor
func (s *Service) owner(ctx context.Context, actor Actor) (*models.User, *models.Group, Result, bool) {
	username := broadcast.NormalizeUsername(actor.Username)
	if username == "" {
		return nil, nil, Result{Outcome: OutcomeNotRegistered, Missing: "user"}, false
	}

	user, err := s.users.GetByChatAndUsername(ctx, actor.ChatID, username)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, Result{Outcome: OutcomeNotRegistered, Missing: "user"}, false
	}
	if err != nil {
		return nil, nil, s.storageFailure(actor, err), false
	}

	group, err := s.groups.GetByChatID(ctx, actor.ChatID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, Result{Outcome: OutcomeNotRegistered, Missing: "group"}, false
	}
	if err != nil {
		return nil, nil, s.storageFailure(actor, err), false
	}
	return user, group, Result{}, true
}

func (s *Service) storageFailure(actor Actor, err error) Result {
	s.log.WithError(err).WithField("chat_id", actor.ChatID).Error("Storage operation failed")
	return Result{Outcome: OutcomeStorageFailure, Err: err}
}

// ValidTime reports whether hhmm is a zero-padded 24-hour HH:MM
func ValidTime(hhmm string) bool {
	if len(hhmm) != len(scheduler.TimeLayout) {
		return false
	}
	_, err := time.Parse(scheduler.TimeLayout, hhmm)
	return err == nil
}

// Create stores the actor's daily reminder for the chat. An existing reminder
// of the same (user, group) pair is replaced.
func (s *Service) Create(ctx context.Context, actor Actor, hhmm, text string) Result {
	if res, ok := s.authorize(actor); !ok {
		return res
	}
	if !ValidTime(hhmm) {
		return Result{Outcome: OutcomeInvalidInput}
	}

	user, group, res, ok := s.owner(ctx, actor)
	if !ok {
		return res
	}

	rem := &models.Reminder{UserID: user.ID, GroupID: group.ID, Time: hhmm, Text: text, ChatID: group.ChatID, Username: user.Username}
	replaced, err := s.reminders.Upsert(ctx, rem)
	if err != nil {
		return s.storageFailure(actor, err)
	}

	s.scheduleOnce(*rem, text)
	s.log.WithFields(logrus.Fields{
		"chat_id":     actor.ChatID,
		"reminder_id": rem.ID,
		"time":        hhmm,
		"replaced":    replaced,
	}).Info("Reminder saved")

	return Result{Outcome: OutcomeOK, Reminder: rem, Replaced: replaced, NextRun: s.nextRun(hhmm)}
}

// Edit replaces the time and text of the actor's reminder in the chat
func (s *Service) Edit(ctx context.Context, actor Actor, hhmm, text string) Result {
	if res, ok := s.authorize(actor); !ok {
		return res
	}
	if !ValidTime(hhmm) {
		return Result{Outcome: OutcomeInvalidInput}
	}

	user, group, res, ok := s.owner(ctx, actor)
	if !ok {
		return res
	}

	rows, err := s.reminders.UpdateByOwner(ctx, user.ID, group.ID, hhmm, text)
	if err != nil {
		return s.storageFailure(actor, err)
	}
	if rows == 0 {
		return Result{Outcome: OutcomeNotFound}
	}

	rem, err := s.reminders.GetByOwner(ctx, user.ID, group.ID)
	if err != nil {
		// the row is updated; only the one-shot is lost
		s.log.WithError(err).WithField("chat_id", actor.ChatID).Warn("Failed to reload edited reminder")
		return Result{Outcome: OutcomeOK, NextRun: s.nextRun(hhmm)}
	}

	s.scheduleOnce(*rem, EditedPrefix+text)
	s.log.WithFields(logrus.Fields{
		"chat_id":     actor.ChatID,
		"reminder_id": rem.ID,
		"time":        hhmm,
	}).Info("Reminder edited")

	return Result{Outcome: OutcomeOK, Reminder: rem, NextRun: s.nextRun(hhmm)}
}

// Cancel deletes the actor's reminder in the chat and retracts its pending one-shot
func (s *Service) Cancel(ctx context.Context, actor Actor) Result {
	if res, ok := s.authorize(actor); !ok {
		return res
	}

	user, group, res, ok := s.owner(ctx, actor)
	if !ok {
		return res
	}

	existing, err := s.reminders.GetByOwner(ctx, user.ID, group.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return s.storageFailure(actor, err)
	}

	rows, err := s.reminders.DeleteByOwner(ctx, user.ID, group.ID)
	if err != nil {
		return s.storageFailure(actor, err)
	}
	if existing != nil {
		s.dispatcher.Retract(existing.ID)
	}
	if rows == 0 {
		return Result{Outcome: OutcomeNotFound}
	}

	s.log.WithField("chat_id", actor.ChatID).Info("Reminder canceled")
	return Result{Outcome: OutcomeOK}
}

// List returns the reminders of a chat
func (s *Service) List(ctx context.Context, chatID int64) ([]models.Reminder, error) {
	return s.reminders.ListByChat(ctx, chatID)
}

// AddMember registers username in the actor's chat. Changed is false when it
// was already registered.
func (s *Service) AddMember(ctx context.Context, actor Actor, chatName, username string) Result {
	if res, ok := s.authorize(actor); !ok {
		return res
	}
	username = broadcast.NormalizeUsername(username)
	if username == "" {
		return Result{Outcome: OutcomeInvalidInput}
	}

	if _, err := s.groups.Ensure(ctx, actor.ChatID, chatName); err != nil {
		return s.storageFailure(actor, err)
	}
	added, err := s.users.Ensure(ctx, actor.ChatID, username)
	if err != nil {
		return s.storageFailure(actor, err)
	}
	return Result{Outcome: OutcomeOK, Changed: added}
}

// RemoveMember unregisters username from the actor's chat. The member's
// reminder goes with it, including any pending one-shot.
func (s *Service) RemoveMember(ctx context.Context, actor Actor, username string) Result {
	if res, ok := s.authorize(actor); !ok {
		return res
	}
	username = broadcast.NormalizeUsername(username)
	if username == "" {
		return Result{Outcome: OutcomeInvalidInput}
	}

	s.retractMember(ctx, actor.ChatID, username)

	removed, err := s.users.Delete(ctx, actor.ChatID, username)
	if err != nil {
		return s.storageFailure(actor, err)
	}
	return Result{Outcome: OutcomeOK, Changed: removed}
}

// ImportMembers registers many usernames at once
func (s *Service) ImportMembers(ctx context.Context, actor Actor, chatName string, usernames []string) Result {
	if res, ok := s.authorize(actor); !ok {
		return res
	}
	if _, err := s.groups.Ensure(ctx, actor.ChatID, chatName); err != nil {
		return s.storageFailure(actor, err)
	}

	res := Result{Outcome: OutcomeOK}
	for _, u := range usernames {
		u = broadcast.NormalizeUsername(u)
		if u == "" {
			res.Skipped++
			continue
		}
		added, err := s.users.Ensure(ctx, actor.ChatID, u)
		if err != nil {
			failed := s.storageFailure(actor, err)
			failed.Added, failed.Skipped = res.Added, res.Skipped
			return failed
		}
		if added {
			res.Added++
		} else {
			res.Skipped++
		}
	}
	return res
}

func (s *Service) retractMember(ctx context.Context, chatID int64, username string) {
	user, err := s.users.GetByChatAndUsername(ctx, chatID, username)
	if err != nil {
		return
	}
	group, err := s.groups.GetByChatID(ctx, chatID)
	if err != nil {
		return
	}
	if rem, err := s.reminders.GetByOwner(ctx, user.ID, group.ID); err == nil {
		s.dispatcher.Retract(rem.ID)
	}
}

func (s *Service) scheduleOnce(rem models.Reminder, text string) {
	if err := s.dispatcher.ScheduleOnce(rem, text); err != nil {
		s.log.WithError(err).WithField("reminder_id", rem.ID).Error("Failed to schedule one-shot reminder")
	}
}

func (s *Service) nextRun(hhmm string) time.Time {
	next, err := scheduler.NextOccurrence(s.now(), hhmm, s.loc)
	if err != nil {
		return time.Time{}
	}
	return next
}
