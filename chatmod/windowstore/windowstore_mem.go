package windowstore

import (
	"context"
	"sync"
	"time"
)

type memEvent struct {
	at          time.Time
	fingerprint string
}

// MemWindowStore keeps windows in process memory. The mutex makes each
// Evaluate call atomic, which is what keeps two in-flight messages from the
// same user from both reading "under limit" before either appends.
type MemWindowStore struct {
	mu      sync.Mutex
	buckets map[string][]memEvent
}

func NewMemWindowStore() *MemWindowStore {
	return &MemWindowStore{
		buckets: make(map[string][]memEvent),
	}
}

func (s *MemWindowStore) Evaluate(ctx context.Context, bucket, fingerprint string, now time.Time, limit Limit) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// lazy expiry: drop everything older than the window
	kept := s.buckets[bucket][:0]
	for _, ev := range s.buckets[bucket] {
		if now.Sub(ev.at) <= limit.Window {
			kept = append(kept, ev)
		}
	}

	res := Result{Count: len(kept)}
	if len(kept) >= limit.Max {
		res.Flagged = true
		res.Reason = ReasonRateLimit
	} else if limit.DuplicateThreshold > 0 {
		// count includes the incoming occurrence, so the threshold-th
		// identical message is the one that gets flagged
		dupes := 1
		for _, ev := range kept {
			if ev.fingerprint == fingerprint {
				dupes++
			}
		}
		if dupes >= limit.DuplicateThreshold {
			res.Flagged = true
			res.Reason = ReasonDuplicate
		}
	}

	// the event counts toward future windows regardless of verdict
	s.buckets[bucket] = append(kept, memEvent{at: now, fingerprint: fingerprint})
	return res, nil
}
