// Package cooldown gates privileged actions behind a per-user cooldown. A
// successful TryConfirm both checks and records the confirmation in one atomic
// step, so two concurrent confirms from the same user cannot both pass.
package cooldown

import (
	"context"
	"time"
)

type Gate interface {
	// TryConfirm allows at most one confirmation per user per cooldown
	// period. When rejected, remaining is the wait time left.
	TryConfirm(ctx context.Context, userID string, now time.Time) (allowed bool, remaining time.Duration, err error)
}
