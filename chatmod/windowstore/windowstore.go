// Package windowstore tracks recent message activity in sliding time windows,
// for rate and duplicate-content detection. Buckets are opaque strings; the
// engine uses one bucket per user plus a single community-wide bucket.
package windowstore

import (
	"context"
	"fmt"
	"time"
)

type Reason string

const (
	ReasonNone      Reason = ""
	ReasonRateLimit Reason = "rate-limit"
	ReasonDuplicate Reason = "duplicate"
)

// Limit configures one evaluation. DuplicateThreshold of zero disables the
// duplicate-content check (used for the community-wide bucket, which only
// throttles burst volume).
type Limit struct {
	Max                int
	Window             time.Duration
	DuplicateThreshold int
}

type Result struct {
	Flagged bool
	Reason  Reason
	// number of retained events in the window, before the current one
	Count int
}

// WindowStore evaluates a single message event against a bucket's sliding
// window. Evaluate is atomic: stale entries are purged, the verdict is
// computed, and the triggering event is appended, all in one step. The event
// is appended even when the verdict is a block, so a user who keeps sending
// past the limit stays limited until the window ages out.
type WindowStore interface {
	Evaluate(ctx context.Context, bucket, fingerprint string, now time.Time, limit Limit) (Result, error)
}

func UserBucket(userID string) string {
	return fmt.Sprintf("user/%s", userID)
}

func GlobalBucket(communityID string) string {
	return fmt.Sprintf("global/%s", communityID)
}
