package engine

import (
	"context"
)

// Interface for a type that can push audit events to an out-of-band sink
// (beyond the in-community log channels).
type Notifier interface {
	SendAudit(ctx context.Context, tier Tier, evt AuditEvent) error
}
