package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/example/tagbot/pkg/models"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// TimeLayout is the format of reminder times and of the sweep tick.
// Stored times must match it exactly.
const TimeLayout = "15:04"

// sweepSpec fires the sweep at the start of every minute
const sweepSpec = "* * * * *"

// Notifier delivers a reminder text to a chat
type Notifier interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

// ReminderStore finds reminders due at a time of day
type ReminderStore interface {
	GetDueAt(ctx context.Context, hhmm string) ([]models.Reminder, error)
}

// Scheduler is the dispatch engine. The per-minute sweep over the reminders
// table is the durable trigger; optional one-shot jobs cover the first
// occurrence of a new or edited reminder. A ledger makes sure the two never
// deliver the same reminder twice for the same day and time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     ReminderStore
	notifier  Notifier
	loc       *time.Location
	log       *logrus.Logger
	ledger    *ledger
	oneShot   bool
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithOneShot enables or disables one-shot jobs on create/edit
func WithOneShot(enabled bool) Option {
	return func(s *Scheduler) { s.oneShot = enabled }
}

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a new scheduler instance running in loc
func New(store ReminderStore, notifier Notifier, loc *time.Location, log *logrus.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		store:     store,
		notifier:  notifier,
		loc:       loc,
		log:       log,
		ledger:    newLedger(),
		oneShot:   true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start registers the minute sweep and starts running jobs in the background.
// Jobs stop receiving a live context once ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	_, err := s.scheduler.Cron(sweepSpec).Tag("sweep").WaitForSchedule().Do(s.runSweep)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.scheduler.StartAsync()
	s.log.WithField("timezone", s.loc.String()).Info("Reminder scheduler started")
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
	s.log.Info("Reminder scheduler stopped")
}

func (s *Scheduler) runSweep() {
	if err := s.Sweep(s.ctx, s.now()); err != nil {
		s.log.WithError(err).Error("Reminder sweep failed")
	}
}

// Sweep delivers every reminder whose time equals now's local time of day.
// A storage error aborts this sweep only; delivery errors are logged per reminder.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) error {
	local := now.In(s.loc)
	tick := local.Format(TimeLayout)
	s.ledger.prune(local.Add(-48 * time.Hour))

	reminders, err := s.store.GetDueAt(ctx, tick)
	if err != nil {
		return fmt.Errorf("failed to query reminders for %s: %w", tick, err)
	}

	for _, rem := range reminders {
		s.dispatch(ctx, local, rem.ID, rem.ChatID, rem.Time, rem.Text, "sweep")
	}
	return nil
}

// ScheduleOnce registers a single delivery of text at the next local
// occurrence of rem.Time. A previously scheduled one-shot for the same
// reminder is replaced. It is a no-op when one-shot jobs are disabled.
func (s *Scheduler) ScheduleOnce(rem models.Reminder, text string) error {
	if !s.oneShot {
		return nil
	}
	if _, err := time.Parse(TimeLayout, rem.Time); err != nil {
		return fmt.Errorf("invalid reminder time %q: %w", rem.Time, err)
	}

	s.Retract(rem.ID)

	_, err := s.scheduler.Every(1).Day().At(rem.Time).LimitRunsTo(1).
		Tag(oneShotTag(rem.ID)).
		Do(s.fireOnce, rem.ID, rem.ChatID, rem.Time, text)
	if err != nil {
		return fmt.Errorf("failed to schedule one-shot for reminder %d: %w", rem.ID, err)
	}

	s.log.WithFields(logrus.Fields{
		"reminder_id": rem.ID,
		"chat_id":     rem.ChatID,
		"time":        rem.Time,
	}).Debug("One-shot reminder scheduled")
	return nil
}

// Retract removes a pending one-shot job of the reminder, if any
func (s *Scheduler) Retract(reminderID int64) {
	err := s.scheduler.RemoveByTag(oneShotTag(reminderID))
	if err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		s.log.WithError(err).WithField("reminder_id", reminderID).Warn("Failed to retract one-shot reminder")
	}
}

// HasPending reports whether a one-shot job is still registered for the reminder
func (s *Scheduler) HasPending(reminderID int64) bool {
	jobs, err := s.scheduler.FindJobsByTag(oneShotTag(reminderID))
	return err == nil && len(jobs) > 0
}

func (s *Scheduler) fireOnce(reminderID, chatID int64, hhmm, text string) {
	local := s.now().In(s.loc)
	s.dispatch(s.ctx, local, reminderID, chatID, hhmm, text, "one-shot")
}

func (s *Scheduler) dispatch(ctx context.Context, local time.Time, reminderID, chatID int64, hhmm, text, path string) {
	entry := s.log.WithFields(logrus.Fields{
		"reminder_id": reminderID,
		"chat_id":     chatID,
		"time":        hhmm,
		"path":        path,
	})

	if !s.ledger.claim(reminderID, local, hhmm) {
		entry.Debug("Reminder already delivered for this occurrence")
		return
	}

	if err := s.notifier.Deliver(ctx, chatID, text); err != nil {
		entry.WithError(err).Error("Failed to deliver reminder")
		return
	}
	entry.Info("Reminder delivered")
}

// NextOccurrence returns the next moment strictly after now at which the
// local wall clock in loc reads hhmm
func NextOccurrence(now time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, t.Hour(), t.Minute(), 0, 0, loc)
	}
	return next, nil
}

func oneShotTag(reminderID int64) string {
	return "reminder-" + strconv.FormatInt(reminderID, 10)
}
