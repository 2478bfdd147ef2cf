package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cardhouse/linesman/chatmod/windowstore"
	"github.com/cardhouse/linesman/platform"
)

func testMessage(id, authorID, content string) platform.Message {
	return platform.Message{
		ID:            id,
		ChannelID:     "chan-1",
		CommunityID:   "guild-1",
		AuthorID:      authorID,
		AuthorDisplay: authorID + " (" + authorID + ")",
		Content:       content,
	}
}

func TestCleanMessagePassthrough(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	var passed []string
	eng.Passthrough = func(ctx context.Context, msg platform.Message) error {
		passed = append(passed, msg.ID)
		return nil
	}

	assert.NoError(eng.ProcessMessage(ctx, testMessage("m1", "u1", "hello there")))
	assert.Equal([]string{"m1"}, passed)
	assert.Empty(fake.Deleted)
	assert.Empty(fake.Markings)
}

func TestBotAuthorsIgnored(t *testing.T) {
	assert := assert.New(t)

	eng, fake := EngineTestFixture()
	msg := testMessage("m1", "bot-2", "free nitro https://bit.ly/x")
	msg.AuthorIsBot = true

	assert.NoError(eng.ProcessMessage(context.Background(), msg))
	assert.Empty(fake.Deleted)
}

func TestScamMessageBlocked(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	assert.NoError(eng.ProcessMessage(ctx, testMessage("m1", "u1", "claim your free nitro https://bit.ly/scam")))

	assert.Equal([]string{"chan-1/m1"}, fake.Deleted)
	assert.Equal([]string{"u1:role-yellow"}, fake.Markings)
	assert.Len(fake.ChannelMsgs["chan-spam"], 1)
	assert.Len(fake.ChannelMsgs["chan-warn"], 1)
	assert.Len(fake.Directs["u1"], 1)
	assert.Contains(fake.Directs["u1"][0], "suspicious link")

	rec, err := eng.Ledger.Get(ctx, "u1")
	assert.NoError(err)
	assert.Equal(1, rec.Count)
}

func TestThreeStrikesBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	now := time.Now()
	eng.Now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		msg := testMessage("m", "u9", "verify account at https://iplogger.org/x")
		msg.ID = msg.ID + string(rune('1'+i))
		assert.NoError(eng.ProcessMessage(ctx, msg))
		now = now.Add(10 * time.Minute)
	}

	rec, err := eng.Ledger.Get(ctx, "u9")
	assert.NoError(err)
	assert.Equal(3, rec.Count)
	assert.Equal([]string{"u9"}, fake.Removed)
	assert.Contains(fake.Markings, "u9:role-yellow")
	assert.Contains(fake.Markings, "u9:role-black")
	assert.Len(fake.ChannelMsgs["chan-ban"], 1)
}

func TestSideEffectFailuresIsolated(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	fake.FailDelete = true
	fake.FailDirect = true
	fake.FailRemove = true
	now := time.Now()
	eng.Now = func() time.Time { return now }

	// three strikes with every external action failing: the pipeline never
	// errors and the ledger still holds the full record
	for i := 0; i < 3; i++ {
		assert.NoError(eng.ProcessMessage(ctx, testMessage("m1", "u1", "free nitro https://bit.ly/x")))
		now = now.Add(10 * time.Minute)
	}

	rec, err := eng.Ledger.Get(ctx, "u1")
	assert.NoError(err)
	assert.Equal(3, rec.Count)
	assert.Empty(fake.Removed)
}

func TestEscalateOutcomes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := EngineTestFixture()
	t0 := time.Now()

	outcome, err := eng.Escalate(ctx, "guild-1", "u1", "u1", "first", t0)
	assert.NoError(err)
	assert.Equal(OutcomeWarned, outcome)

	outcome, err = eng.Escalate(ctx, "guild-1", "u1", "u1", "second", t0)
	assert.NoError(err)
	assert.Equal(OutcomeWarned, outcome)

	outcome, err = eng.Escalate(ctx, "guild-1", "u1", "u1", "third", t0)
	assert.NoError(err)
	assert.Equal(OutcomeBanned, outcome)

	// callers should not escalate past a ban, but doing so must not crash
	// and must still be recorded
	outcome, err = eng.Escalate(ctx, "guild-1", "u1", "u1", "fourth", t0)
	assert.NoError(err)
	assert.Equal(OutcomeBanned, outcome)

	rec, err := eng.Ledger.Get(ctx, "u1")
	assert.NoError(err)
	assert.Len(rec.History, 4)
}

func TestAmnestyResetStartsOver(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := EngineTestFixture()
	t0 := time.Now()

	_, err := eng.Escalate(ctx, "guild-1", "u1", "u1", "first", t0)
	assert.NoError(err)
	_, err = eng.Escalate(ctx, "guild-1", "u1", "u1", "second", t0.Add(time.Hour))
	assert.NoError(err)

	reset, err := eng.SweepAmnesty(ctx, t0.Add(eng.Policy.AmnestyPeriod+2*time.Hour))
	assert.NoError(err)
	assert.Equal([]string{"u1"}, reset)

	outcome, err := eng.Escalate(ctx, "guild-1", "u1", "u1", "relapse", t0.Add(eng.Policy.AmnestyPeriod+3*time.Hour))
	assert.NoError(err)
	assert.Equal(OutcomeWarned, outcome)
}

func TestReasonTextOrdering(t *testing.T) {
	assert := assert.New(t)

	res := checkResult{
		RateReason:     windowstore.ReasonRateLimit,
		Score:          80,
		SuspiciousLink: true,
		MassMention:    true,
		BannedWord:     true,
	}
	assert.Equal(
		"message rate limit | mass mention | risk score 80% | suspicious link | banned keyword",
		res.reasonText(50),
	)

	// a sub-threshold score is omitted from the aggregate
	res = checkResult{RateReason: windowstore.ReasonDuplicate, Score: 30}
	assert.Equal("repeated message content", res.reasonText(50))

	res = checkResult{BannedWord: true, Score: 30}
	assert.Equal("banned keyword", res.reasonText(50))
}

func TestGlobalLimitBlocksCleanUser(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	now := time.Now()
	eng.Now = func() time.Time { return now }

	// five different authors fill the community-wide window; each is well
	// under their own per-user limit
	for i := 0; i < 5; i++ {
		author := "u" + string(rune('1'+i))
		assert.NoError(eng.ProcessMessage(ctx, testMessage("m"+string(rune('1'+i)), author, "unique message from "+author)))
		now = now.Add(time.Second)
	}
	assert.Empty(fake.Deleted)

	// the sixth author has a clean personal window but the community burst
	// limit is hit, and that blocks regardless of per-user state
	assert.NoError(eng.ProcessMessage(ctx, testMessage("m6", "u6", "unique message from u6")))
	assert.Equal([]string{"chan-1/m6"}, fake.Deleted)
	assert.Contains(fake.Directs["u6"][0], "message rate limit")

	rec, err := eng.Ledger.Get(ctx, "u6")
	assert.NoError(err)
	assert.Equal(1, rec.Count)

	// the earlier authors were never touched
	rec, err = eng.Ledger.Get(ctx, "u1")
	assert.NoError(err)
	assert.Equal(0, rec.Count)
}

func TestRateLimitedUserEventuallyBlocked(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, fake := EngineTestFixture()
	now := time.Now()
	eng.Now = func() time.Time { return now }

	// innocuous content, but past the per-user limit: the third message in
	// the window is removed and the author warned
	for i := 0; i < 2; i++ {
		assert.NoError(eng.ProcessMessage(ctx, testMessage("m1", "u1", "hello")))
		now = now.Add(time.Second)
	}
	assert.Empty(fake.Deleted)

	assert.NoError(eng.ProcessMessage(ctx, testMessage("m3", "u1", "hello")))
	assert.Equal([]string{"chan-1/m3"}, fake.Deleted)
	assert.Contains(fake.Directs["u1"][0], "message rate limit")
}
