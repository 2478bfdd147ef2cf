package windowstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemWindowRateLimit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ws := NewMemWindowStore()
	limit := Limit{Max: 2, Window: 120 * time.Second, DuplicateThreshold: 3}
	t0 := time.Now()
	bucket := UserBucket("u1")

	res, err := ws.Evaluate(ctx, bucket, "m1", t0, limit)
	assert.NoError(err)
	assert.False(res.Flagged)

	res, err = ws.Evaluate(ctx, bucket, "m2", t0.Add(time.Second), limit)
	assert.NoError(err)
	assert.False(res.Flagged)

	// everything from the (limit+1)-th message onward is flagged
	for i := 0; i < 5; i++ {
		res, err = ws.Evaluate(ctx, bucket, "m3", t0.Add(time.Duration(2+i)*time.Second), limit)
		assert.NoError(err)
		assert.True(res.Flagged)
		assert.Equal(ReasonRateLimit, res.Reason)
	}
}

func TestMemWindowSpacedMessagesNeverFlagged(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ws := NewMemWindowStore()
	limit := Limit{Max: 1, Window: 10 * time.Second}
	bucket := UserBucket("u1")

	// one message every window+epsilon stays clean forever
	at := time.Now()
	for i := 0; i < 10; i++ {
		res, err := ws.Evaluate(ctx, bucket, "hello", at, limit)
		assert.NoError(err)
		assert.False(res.Flagged)
		at = at.Add(11 * time.Second)
	}
}

func TestMemWindowDuplicateContent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ws := NewMemWindowStore()
	limit := Limit{Max: 10, Window: time.Minute, DuplicateThreshold: 3}
	t0 := time.Now()
	bucket := UserBucket("u1")

	for i := 0; i < 2; i++ {
		res, err := ws.Evaluate(ctx, bucket, "buy my thing", t0.Add(time.Duration(i)*time.Second), limit)
		assert.NoError(err)
		assert.False(res.Flagged)
	}

	// the third identical message trips the duplicate rule even though the
	// count limit alone would not have
	res, err := ws.Evaluate(ctx, bucket, "buy my thing", t0.Add(2*time.Second), limit)
	assert.NoError(err)
	assert.True(res.Flagged)
	assert.Equal(ReasonDuplicate, res.Reason)

	// different content is unaffected; matching is exact and case-sensitive
	res, err = ws.Evaluate(ctx, bucket, "BUY MY THING", t0.Add(3*time.Second), limit)
	assert.NoError(err)
	assert.False(res.Flagged)
}

func TestMemWindowBlockedMessagesStillCount(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ws := NewMemWindowStore()
	limit := Limit{Max: 1, Window: 10 * time.Second}
	t0 := time.Now()
	bucket := UserBucket("u1")

	res, _ := ws.Evaluate(ctx, bucket, "a", t0, limit)
	assert.False(res.Flagged)

	res, _ = ws.Evaluate(ctx, bucket, "b", t0.Add(5*time.Second), limit)
	assert.True(res.Flagged)

	// the blocked message at +5s was still recorded, so at +12s (after the
	// first message expired) the window is not empty and the user stays
	// limited; intentional lockout behavior
	res, _ = ws.Evaluate(ctx, bucket, "c", t0.Add(12*time.Second), limit)
	assert.True(res.Flagged)

	// once every recorded event has aged out the user is clean again
	res, _ = ws.Evaluate(ctx, bucket, "d", t0.Add(23*time.Second), limit)
	assert.False(res.Flagged)
}

func TestMemWindowDuplicateCheckDisabled(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ws := NewMemWindowStore()
	// the community-wide bucket throttles volume only
	limit := Limit{Max: 100, Window: time.Minute, DuplicateThreshold: 0}
	t0 := time.Now()
	bucket := GlobalBucket("g1")

	for i := 0; i < 20; i++ {
		res, err := ws.Evaluate(ctx, bucket, "same thing", t0.Add(time.Duration(i)*time.Second), limit)
		assert.NoError(err)
		assert.False(res.Flagged)
	}
}
