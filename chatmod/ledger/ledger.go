// Package ledger records per-user warnings and their history. The ledger only
// ever counts upward; the amnesty sweep is the single writer allowed to reset
// a record, and only after a sustained period with no new entries.
package ledger

import (
	"context"
	"time"
)

type Entry struct {
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
}

type Record struct {
	Count   int
	History []Entry
}

// LastEntry returns the most recent history entry, or false for a clean record.
func (r Record) LastEntry() (Entry, bool) {
	if len(r.History) == 0 {
		return Entry{}, false
	}
	return r.History[len(r.History)-1], true
}

type Ledger interface {
	// Escalate increments the user's warning count and appends a history
	// entry, atomically, returning the new count. It never refuses: a call
	// against an already-terminal record still appends.
	Escalate(ctx context.Context, userID, reason string, now time.Time) (int, error)
	Get(ctx context.Context, userID string) (Record, error)
	// SweepExpired resets every record whose most recent entry is at least
	// amnesty old, returning the affected user IDs. Count and history are
	// cleared in the same step so they cannot diverge.
	SweepExpired(ctx context.Context, now time.Time, amnesty time.Duration) ([]string, error)
}
