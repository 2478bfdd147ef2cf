package ledger

import (
	"context"
	"sync"
	"time"
)

type MemLedger struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		records: make(map[string]*Record),
	}
}

func (l *MemLedger) Escalate(ctx context.Context, userID, reason string, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		rec = &Record{}
		l.records[userID] = rec
	}
	rec.Count++
	rec.History = append(rec.History, Entry{Time: now, Reason: reason})
	return rec.Count, nil
}

func (l *MemLedger) Get(ctx context.Context, userID string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		return Record{}, nil
	}
	out := Record{Count: rec.Count, History: make([]Entry, len(rec.History))}
	copy(out.History, rec.History)
	return out, nil
}

func (l *MemLedger) SweepExpired(ctx context.Context, now time.Time, amnesty time.Duration) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var reset []string
	for userID, rec := range l.records {
		last, ok := rec.LastEntry()
		if !ok {
			continue
		}
		if now.Sub(last.Time) >= amnesty {
			rec.Count = 0
			rec.History = nil
			reset = append(reset, userID)
		}
	}
	return reset, nil
}
