package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// A privileged announcement, composed by a staff member and sent to a channel
// after an explicit confirm step.
type Broadcast struct {
	CommunityID   string
	ChannelID     string
	AuthorID      string
	AuthorDisplay string
	// mention prefix prepended to the content (eg, role mentions)
	Mention string
	Content string
}

// ErrDraftBlocked is returned when a broadcast draft trips the same abuse
// screening as ordinary messages.
var ErrDraftBlocked = errors.New("broadcast draft blocked by abuse screening")

// CooldownError reports a confirm attempt inside the cooldown window.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("confirm cooldown active, %s remaining", e.Remaining.Round(time.Second))
}

// SubmitBroadcast screens a draft announcement with the full detection
// pipeline. A violating draft is treated exactly like a violating message:
// the author is escalated and the attempt is audited.
func (eng *Engine) SubmitBroadcast(ctx context.Context, b Broadcast) error {
	now := eng.now()
	res, err := eng.evaluate(ctx, b.AuthorID, b.CommunityID, b.Content, now)
	if err != nil {
		return err
	}
	if !res.violation(eng.Policy.RiskThreshold) {
		return nil
	}

	reason := res.reasonText(eng.Policy.RiskThreshold)
	if _, err := eng.Escalate(ctx, b.CommunityID, b.AuthorID, b.AuthorDisplay, reason, now); err != nil {
		eng.Logger.Error("escalation failed", "userID", b.AuthorID, "err", err)
	}
	eng.emitAudit(ctx, TierSpam, b.CommunityID, AuditEvent{
		Title:       "SECURITY | spam/abuse",
		UserID:      b.AuthorID,
		UserDisplay: b.AuthorDisplay,
		Reason:      "broadcast draft | " + reason,
		StaffID:     eng.SelfID,
		Timestamp:   now,
		Color:       colorSpam,
	})
	return fmt.Errorf("%w: %s", ErrDraftBlocked, reason)
}

// ConfirmBroadcast passes the author through the confirmation gate and, if
// allowed, sends the announcement exactly once. A rejected confirm returns
// CooldownError with the remaining wait.
func (eng *Engine) ConfirmBroadcast(ctx context.Context, b Broadcast) error {
	allowed, remaining, err := eng.Gate.TryConfirm(ctx, b.AuthorID, eng.now())
	if err != nil {
		return fmt.Errorf("confirm gate: %w", err)
	}
	if !allowed {
		broadcastCount.WithLabelValues("cooled").Inc()
		return &CooldownError{Remaining: remaining}
	}

	content := b.Content
	if b.Mention != "" {
		content = b.Mention + "\n" + content
	}
	if err := eng.Platform.SendChannel(ctx, b.ChannelID, content); err != nil {
		broadcastCount.WithLabelValues("failed").Inc()
		return fmt.Errorf("sending broadcast: %w", err)
	}
	broadcastCount.WithLabelValues("sent").Inc()
	eng.Logger.Info("broadcast sent", "userID", b.AuthorID, "channelID", b.ChannelID)
	return nil
}
