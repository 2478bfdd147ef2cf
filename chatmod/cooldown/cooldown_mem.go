package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemGate keeps last-confirmed timestamps in an expiring LRU, so idle users
// age out on their own. The mutex makes the check-then-set atomic; the LRU's
// own locking is not enough for that.
type MemGate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     *expirable.LRU[string, time.Time]
}

// NewMemGate builds a gate tracking at most capacity users. Past capacity the
// LRU evicts the oldest claim, which ends that user's cooldown early, so
// capacity must exceed the number of users who could plausibly confirm inside
// one cooldown period.
func NewMemGate(capacity int, cooldown time.Duration) *MemGate {
	return &MemGate{
		cooldown: cooldown,
		last:     expirable.NewLRU[string, time.Time](capacity, nil, cooldown),
	}
}

func (g *MemGate) TryConfirm(ctx context.Context, userID string, now time.Time) (bool, time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.last.Get(userID); ok {
		if elapsed := now.Sub(at); elapsed < g.cooldown {
			return false, g.cooldown - elapsed, nil
		}
	}
	g.last.Add(userID, now)
	return true, 0, nil
}
