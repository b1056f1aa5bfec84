package reminder

import (
	"time"

	"github.com/example/tagbot/pkg/models"
)

// Outcome classifies how a command ended so the caller can reply to each case
type Outcome int

const (
	OutcomeOK Outcome = iota
	// The invoking user or the group has no row yet
	OutcomeNotRegistered
	// The invoking user is neither administrator nor creator
	OutcomePermissionDenied
	// A database read or write failed
	OutcomeStorageFailure
	// Edit or cancel found no reminder for the (user, group) pair
	OutcomeNotFound
	// The time argument is not a valid HH:MM
	OutcomeInvalidInput
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotRegistered:
		return "not_registered"
	case OutcomePermissionDenied:
		return "permission_denied"
	case OutcomeStorageFailure:
		return "storage_failure"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Result is returned by every Service command
type Result struct {
	Outcome Outcome
	Err     error

	// Set by Create and Edit
	Reminder *models.Reminder
	// Create replaced the pair's previous reminder
	Replaced bool
	// Next local time the reminder fires
	NextRun time.Time

	// Which record was missing for OutcomeNotRegistered: "user" or "group"
	Missing string

	// Set by AddMember and RemoveMember: a row was actually added or removed
	Changed bool
	// Set by ImportMembers
	Added   int
	Skipped int
}

// OK reports whether the command succeeded
func (r Result) OK() bool { return r.Outcome == OutcomeOK }
