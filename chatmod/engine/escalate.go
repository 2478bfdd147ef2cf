package engine

import (
	"context"
	"fmt"
	"time"
)

type Outcome string

const (
	OutcomeWarned Outcome = "warned"
	OutcomeBanned Outcome = "banned"
)

// Escalate records one warning against a user and applies the consequence for
// the resulting tier: a yellow marking below the strike limit, a black marking
// plus removal from the community at the limit. The warning count and history
// are the source of truth; they are recorded first and are never rolled back
// when a downstream side effect fails.
func (eng *Engine) Escalate(ctx context.Context, communityID, userID, userDisplay, reason string, now time.Time) (Outcome, error) {
	count, err := eng.Ledger.Escalate(ctx, userID, reason, now)
	if err != nil {
		return "", fmt.Errorf("recording warning: %w", err)
	}
	logger := eng.Logger.With("userID", userID, "warnings", count)

	if count < eng.Policy.MaxWarnings {
		escalationCount.WithLabelValues(string(OutcomeWarned)).Inc()
		eng.applyMarking(ctx, communityID, userID, eng.Policy.YellowRoleName)
		eng.emitAudit(ctx, TierWarn, communityID, AuditEvent{
			Title:       "WARN | yellow card",
			UserID:      userID,
			UserDisplay: userDisplay,
			Reason:      reason,
			StaffID:     eng.SelfID,
			Timestamp:   now,
			Color:       colorWarn,
		})
		return OutcomeWarned, nil
	}

	escalationCount.WithLabelValues(string(OutcomeBanned)).Inc()
	banReason := fmt.Sprintf("%d warnings accumulated (black card)", count)
	eng.applyMarking(ctx, communityID, userID, eng.Policy.BlackRoleName)
	eng.emitAudit(ctx, TierBan, communityID, AuditEvent{
		Title:       "BAN | black card",
		UserID:      userID,
		UserDisplay: userDisplay,
		Reason:      reason,
		StaffID:     eng.SelfID,
		Timestamp:   now,
		Color:       colorBan,
	})
	if err := eng.Platform.RemoveMember(ctx, communityID, userID, banReason); err != nil {
		// the user may already be gone, or the bot may lack the privilege;
		// the recorded warnings stand either way
		logger.Warn("member removal failed (ignored)", "err", err)
	}
	return OutcomeBanned, nil
}

// applyMarking resolves a configured role name and grants it. An unconfigured
// or unresolvable role is a silent no-op, not an error.
func (eng *Engine) applyMarking(ctx context.Context, communityID, userID, roleName string) {
	if roleName == "" {
		return
	}
	roleID, err := eng.Platform.RoleByName(ctx, communityID, roleName)
	if err != nil {
		eng.Logger.Debug("role lookup failed (ignored)", "role", roleName, "err", err)
		return
	}
	if roleID == "" {
		return
	}
	if err := eng.Platform.AddMarking(ctx, communityID, userID, roleID); err != nil {
		eng.Logger.Warn("marking failed (ignored)", "userID", userID, "role", roleName, "err", err)
	}
}

// SweepAmnesty resets every ledger record whose most recent warning is older
// than the amnesty period. Called on a timer by the daemon; tests call it
// directly for a deterministic single pass.
func (eng *Engine) SweepAmnesty(ctx context.Context, now time.Time) ([]string, error) {
	reset, err := eng.Ledger.SweepExpired(ctx, now, eng.Policy.AmnestyPeriod)
	if err != nil {
		return nil, fmt.Errorf("amnesty sweep: %w", err)
	}
	for _, userID := range reset {
		eng.Logger.Info("warnings reset by amnesty", "userID", userID)
	}
	amnestyResetCount.Add(float64(len(reset)))
	return reset, nil
}
