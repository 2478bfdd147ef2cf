// Package platform defines the contracts the moderation engine expects from
// the chat platform: message delivery, membership actions, and lookup of
// configured channels and roles. Implementations live in sub-packages; tests
// use in-memory fakes.
package platform

import (
	"context"
	"time"
)

// A single inbound chat message, as delivered by the gateway.
type Message struct {
	ID          string
	ChannelID   string
	CommunityID string
	AuthorID    string
	// human-readable form of the author, for audit events ("name (id)")
	AuthorDisplay string
	AuthorIsBot   bool
	Content       string
	Timestamp     time.Time
}

// Messenger sends and removes messages. All methods are best-effort from the
// engine's point of view: a returned error is logged and discarded, never
// propagated.
type Messenger interface {
	SendChannel(ctx context.Context, channelID, content string) error
	SendDirect(ctx context.Context, userID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Membership applies community-level consequences to a user.
type Membership interface {
	AddMarking(ctx context.Context, communityID, userID, roleID string) error
	RemoveMember(ctx context.Context, communityID, userID, reason string) error
}

// Directory resolves configured channel and role names to platform IDs.
// A name that does not resolve is not an error; the caller treats the
// corresponding side effect as a no-op.
type Directory interface {
	ChannelByName(ctx context.Context, communityID, name string) (string, error)
	RoleByName(ctx context.Context, communityID, name string) (string, error)
}

// Client bundles the full set of platform capabilities.
type Client interface {
	Messenger
	Membership
	Directory
}
