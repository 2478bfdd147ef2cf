package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemGateCooldown(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	g := NewMemGate(100, time.Minute)
	t0 := time.Now()

	allowed, _, err := g.TryConfirm(ctx, "u1", t0)
	assert.NoError(err)
	assert.True(allowed)

	// a second confirm inside the window is rejected with the remaining wait
	allowed, remaining, err := g.TryConfirm(ctx, "u1", t0.Add(20*time.Second))
	assert.NoError(err)
	assert.False(allowed)
	assert.Equal(40*time.Second, remaining)

	// a different user is unaffected
	allowed, _, err = g.TryConfirm(ctx, "u2", t0.Add(20*time.Second))
	assert.NoError(err)
	assert.True(allowed)

	// once the cooldown elapses the next confirm passes
	allowed, _, err = g.TryConfirm(ctx, "u1", t0.Add(61*time.Second))
	assert.NoError(err)
	assert.True(allowed)

	// and starts a fresh cooldown
	allowed, _, err = g.TryConfirm(ctx, "u1", t0.Add(70*time.Second))
	assert.NoError(err)
	assert.False(allowed)
}
