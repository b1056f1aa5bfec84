package scheduler

import (
	"fmt"
	"sync"
	"time"
)

// ledger remembers which (reminder, day, time) occurrences were already
// dispatched by either the sweep or a one-shot job
type ledger struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newLedger() *ledger {
	return &ledger{entries: make(map[string]time.Time)}
}

// claim returns true the first time an occurrence is seen
func (l *ledger) claim(reminderID int64, local time.Time, hhmm string) bool {
	key := fmt.Sprintf("%d|%s|%s", reminderID, local.Format("2006-01-02"), hhmm)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[key]; ok {
		return false
	}
	l.entries[key] = local
	return true
}

// prune forgets occurrences claimed before cutoff
func (l *ledger) prune(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, at := range l.entries {
		if at.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

func (l *ledger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
