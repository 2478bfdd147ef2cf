package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cardhouse/linesman/chatmod/cooldown"
	"github.com/cardhouse/linesman/chatmod/ledger"
	"github.com/cardhouse/linesman/chatmod/scorer"
	"github.com/cardhouse/linesman/chatmod/windowstore"
	"github.com/cardhouse/linesman/platform"
)

// Numeric limits and name bindings for the moderation pipeline. All values
// come from daemon flags; DefaultPolicy holds the stock configuration.
type Policy struct {
	UserLimit          int
	UserWindow         time.Duration
	GlobalLimit        int
	GlobalWindow       time.Duration
	DuplicateThreshold int

	Rules         scorer.Rules
	RiskThreshold int

	MaxWarnings   int
	AmnestyPeriod time.Duration

	YellowRoleName string
	BlackRoleName  string
	WarnLogChannel string
	SpamLogChannel string
	BanLogChannel  string
}

func DefaultPolicy() Policy {
	return Policy{
		UserLimit:          2,
		UserWindow:         120 * time.Second,
		GlobalLimit:        5,
		GlobalWindow:       60 * time.Second,
		DuplicateThreshold: 3,
		Rules:              scorer.DefaultRules(),
		RiskThreshold:      50,
		MaxWarnings:        3,
		AmnestyPeriod:      30 * 24 * time.Hour,
		YellowRoleName:     "Yellow Card",
		BlackRoleName:      "Black Card",
		WarnLogChannel:     "warn-log",
		SpamLogChannel:     "spam-log",
		BanLogChannel:      "ban-log",
	}
}

// runtime for evaluating inbound messages, recording warnings, and applying
// consequences through the platform client.
type Engine struct {
	Logger   *slog.Logger
	Policy   Policy
	Windows  windowstore.WindowStore
	Ledger   ledger.Ledger
	Gate     cooldown.Gate
	Platform platform.Client
	// optional out-of-band audit sink (eg, slack webhook)
	Notifier Notifier
	// the bot's own user ID, recorded as the acting staff on audit events
	SelfID string
	// ordinary command processing for messages that pass moderation (optional)
	Passthrough func(ctx context.Context, msg platform.Message) error
	// clock source; defaults to time.Now. Overridden in tests.
	Now func() time.Time
}

func (eng *Engine) now() time.Time {
	if eng.Now != nil {
		return eng.Now()
	}
	return time.Now()
}

// Combined verdict for one piece of text from one author.
type checkResult struct {
	RateReason     windowstore.Reason
	Score          int
	SuspiciousLink bool
	MassMention    bool
	BannedWord     bool
}

func (r checkResult) violation(threshold int) bool {
	return r.RateReason != windowstore.ReasonNone ||
		r.SuspiciousLink || r.MassMention || r.BannedWord ||
		r.Score >= threshold
}

// Human-readable aggregate of every tripped condition, in a fixed order.
func (r checkResult) reasonText(threshold int) string {
	var parts []string
	switch r.RateReason {
	case windowstore.ReasonRateLimit:
		parts = append(parts, "message rate limit")
	case windowstore.ReasonDuplicate:
		parts = append(parts, "repeated message content")
	}
	if r.MassMention {
		parts = append(parts, "mass mention")
	}
	if r.Score >= threshold {
		parts = append(parts, fmt.Sprintf("risk score %d%%", r.Score))
	}
	if r.SuspiciousLink {
		parts = append(parts, "suspicious link")
	}
	if r.BannedWord {
		parts = append(parts, "banned keyword")
	}
	return strings.Join(parts, " | ")
}

// ProcessMessage runs the full detection pipeline against one inbound message
// from a non-system author. The returned error is only for infrastructure
// failures (eg, an unreachable window store); a violating message is handled,
// not an error. Never crashes the caller's receive loop.
func (eng *Engine) ProcessMessage(ctx context.Context, msg platform.Message) error {
	// similar to an HTTP server, we want to recover any panics from evaluation
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("message processing exception", "err", r, "userID", msg.AuthorID, "messageID", msg.ID)
		}
	}()
	start := time.Now()
	defer func() {
		messageProcessDuration.Observe(time.Since(start).Seconds())
	}()

	if msg.AuthorIsBot {
		return nil
	}
	messageProcessCount.Inc()

	now := eng.now()
	res, err := eng.evaluate(ctx, msg.AuthorID, msg.CommunityID, msg.Content, now)
	if err != nil {
		messageErrorCount.Inc()
		return err
	}

	if !res.violation(eng.Policy.RiskThreshold) {
		if eng.Passthrough != nil {
			return eng.Passthrough(ctx, msg)
		}
		return nil
	}

	logger := eng.Logger.With("userID", msg.AuthorID, "messageID", msg.ID)
	reason := res.reasonText(eng.Policy.RiskThreshold)
	logger.Info("message violation", "reason", reason, "score", res.Score)
	violationCount.WithLabelValues(violationLabel(res)).Inc()

	// removal of the offending message is best-effort; it may already be gone
	if err := eng.Platform.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		logger.Debug("message delete failed (ignored)", "err", err)
	}

	outcome, err := eng.Escalate(ctx, msg.CommunityID, msg.AuthorID, msg.AuthorDisplay, reason, now)
	if err != nil {
		// the warning could not be recorded; everything else already ran
		logger.Error("escalation failed", "err", err)
		messageErrorCount.Inc()
		return err
	}

	eng.emitAudit(ctx, TierSpam, msg.CommunityID, AuditEvent{
		Title:       "SECURITY | spam/abuse",
		UserID:      msg.AuthorID,
		UserDisplay: msg.AuthorDisplay,
		Reason:      "auto detect | " + reason,
		StaffID:     eng.SelfID,
		Timestamp:   now,
		Color:       colorSpam,
	})

	logger.Info("escalation applied", "outcome", outcome)

	notice := "Your message was removed.\nReason: " + reason
	if err := eng.Platform.SendDirect(ctx, msg.AuthorID, notice); err != nil {
		// the user may have direct messages disabled
		logger.Debug("violation notice failed (ignored)", "err", err)
	}
	return nil
}

// evaluate runs the rate tracker and the risk scorer. Both always run; the
// window update is a side effect that has to happen even when the scorer
// alone would already block the message.
func (eng *Engine) evaluate(ctx context.Context, userID, communityID, content string, now time.Time) (checkResult, error) {
	var res checkResult

	user, err := eng.Windows.Evaluate(ctx, windowstore.UserBucket(userID), content, now, windowstore.Limit{
		Max:                eng.Policy.UserLimit,
		Window:             eng.Policy.UserWindow,
		DuplicateThreshold: eng.Policy.DuplicateThreshold,
	})
	if err != nil {
		return res, err
	}
	res.RateReason = user.Reason
	if !user.Flagged && eng.Policy.GlobalLimit > 0 {
		global, err := eng.Windows.Evaluate(ctx, windowstore.GlobalBucket(communityID), content, now, windowstore.Limit{
			Max:    eng.Policy.GlobalLimit,
			Window: eng.Policy.GlobalWindow,
			// the community-wide bucket only throttles volume
			DuplicateThreshold: 0,
		})
		if err != nil {
			return res, err
		}
		res.RateReason = global.Reason
	}

	verdict := scorer.Score(content, eng.Policy.Rules)
	res.Score = verdict.Score
	// independent boolean detectors: a low cumulative score does not excuse a
	// tripped detector
	res.SuspiciousLink = scorer.HasSuspiciousLink(content, eng.Policy.Rules)
	res.MassMention = scorer.HasMassMention(content, eng.Policy.Rules)
	res.BannedWord = scorer.HasBannedWords(content, eng.Policy.Rules)
	return res, nil
}

func violationLabel(res checkResult) string {
	switch {
	case res.RateReason == windowstore.ReasonRateLimit:
		return "rate-limit"
	case res.RateReason == windowstore.ReasonDuplicate:
		return "duplicate"
	case res.SuspiciousLink:
		return "suspicious-link"
	case res.MassMention:
		return "mass-mention"
	case res.BannedWord:
		return "banned-keyword"
	default:
		return "risk-score"
	}
}
