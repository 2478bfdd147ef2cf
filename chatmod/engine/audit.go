package engine

import (
	"context"
	"fmt"
	"time"
)

type Tier string

const (
	TierWarn Tier = "warn"
	TierSpam Tier = "spam"
	TierBan  Tier = "ban"
)

const (
	colorWarn uint32 = 0xffcc00
	colorSpam uint32 = 0xff8800
	colorBan  uint32 = 0xff0000
)

// Structured audit record emitted for every moderation action.
type AuditEvent struct {
	Title       string
	UserID      string
	UserDisplay string
	Reason      string
	StaffID     string
	Timestamp   time.Time
	// severity accent for rendered embeds, 0xRRGGBB
	Color uint32
}

func (evt AuditEvent) text() string {
	return fmt.Sprintf("%s\nuser: %s (%s)\nreason: %s\nstaff: %s\nat: %s",
		evt.Title, evt.UserDisplay, evt.UserID, evt.Reason, evt.StaffID,
		evt.Timestamp.UTC().Format(time.RFC3339))
}

func (eng *Engine) auditChannelName(tier Tier) string {
	switch tier {
	case TierWarn:
		return eng.Policy.WarnLogChannel
	case TierBan:
		return eng.Policy.BanLogChannel
	default:
		return eng.Policy.SpamLogChannel
	}
}

// emitAudit posts the event to the configured log channel for the tier, and to
// the out-of-band notifier when one is wired. Both sinks are best-effort; a
// missing channel is a silent no-op.
func (eng *Engine) emitAudit(ctx context.Context, tier Tier, communityID string, evt AuditEvent) {
	auditEventCount.WithLabelValues(string(tier)).Inc()

	name := eng.auditChannelName(tier)
	if name != "" {
		channelID, err := eng.Platform.ChannelByName(ctx, communityID, name)
		if err != nil {
			eng.Logger.Debug("audit channel lookup failed (ignored)", "channel", name, "err", err)
		} else if channelID != "" {
			if err := eng.Platform.SendChannel(ctx, channelID, evt.text()); err != nil {
				eng.Logger.Warn("audit channel post failed (ignored)", "channel", name, "err", err)
			}
		}
	}

	if eng.Notifier != nil {
		if err := eng.Notifier.SendAudit(ctx, tier, evt); err != nil {
			eng.Logger.Warn("audit notification failed (ignored)", "tier", tier, "err", err)
		}
	}
}
