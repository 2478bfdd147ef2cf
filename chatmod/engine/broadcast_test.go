package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBroadcast(content string) Broadcast {
	return Broadcast{
		CommunityID:   "guild-1",
		ChannelID:     "chan-news",
		AuthorID:      "staff-1",
		AuthorDisplay: "staff-1 (staff-1)",
		Mention:       "@team",
		Content:       content,
	}
}

func TestBroadcastDraftScreening(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()

	assert.NoError(eng.SubmitBroadcast(ctx, testBroadcast("launch announcement for tonight")))

	// a scam draft is blocked and its author escalated like any other abuser
	err := eng.SubmitBroadcast(ctx, testBroadcast("free nitro giveaway https://bit.ly/x"))
	assert.ErrorIs(err, ErrDraftBlocked)

	rec, err2 := eng.Ledger.Get(ctx, "staff-1")
	assert.NoError(err2)
	assert.Equal(1, rec.Count)
	assert.Len(fake.ChannelMsgs["chan-spam"], 1)
}

func TestBroadcastConfirmCooldown(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	now := time.Now()
	eng.Now = func() time.Time { return now }

	b := testBroadcast("match starts in one hour")
	assert.NoError(eng.ConfirmBroadcast(ctx, b))
	assert.Equal([]string{"@team\nmatch starts in one hour"}, fake.ChannelMsgs["chan-news"])

	// a second confirm inside the cooldown is rejected and nothing is sent
	now = now.Add(10 * time.Second)
	err := eng.ConfirmBroadcast(ctx, b)
	var cooled *CooldownError
	assert.ErrorAs(err, &cooled)
	assert.Equal(50*time.Second, cooled.Remaining)
	assert.Len(fake.ChannelMsgs["chan-news"], 1)

	// after the cooldown elapses the next send goes through
	now = now.Add(55 * time.Second)
	assert.NoError(eng.ConfirmBroadcast(ctx, b))
	assert.Len(fake.ChannelMsgs["chan-news"], 2)
}
