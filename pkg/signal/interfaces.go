package signal

import "context"

// Member is a live connection's addressable handle inside the fabric and the
// presence directory. Implementations must make Deliver safe to call from
// concurrent goroutines. Holding a Member never transfers ownership: the
// connection's own lifecycle tears it down, and a Deliver to a closed member
// is an error the fabric logs and drops.
type Member interface {
	// ID uniquely identifies the underlying connection, not the user.
	ID() string
	Deliver(envelope *Envelope) error
}

// GroupFabric is the publish/subscribe primitive addressed by opaque group
// names: one group per user identity plus a well-known broadcast group.
//
// Publish delivers the envelope to every member currently subscribed to the
// group, each exactly once, with no cross-group leakage. Publishing to a
// group with no subscribers is a no-op, not an error. Subscribe and
// Unsubscribe are idempotent per (group, member) pair.
type GroupFabric interface {
	Subscribe(ctx context.Context, group string, member Member) error
	Unsubscribe(ctx context.Context, group string, member Member) error
	Publish(ctx context.Context, group string, envelope *Envelope) error
}

// PresenceDirectory tracks which identities are currently represented by at
// least one registered connection.
//
// IsPresent may be approximate in distributed deployments: a stale positive
// leads to an attempted live delivery that the fabric silently drops, which
// is the documented best-effort policy. Only call-request routing consults it.
type PresenceDirectory interface {
	Join(ctx context.Context, identity string, member Member) error
	Leave(ctx context.Context, identity string, member Member) error
	IsPresent(ctx context.Context, identity string) (bool, error)
}

// NotificationStore is the durable log of undelivered notifications keyed by
// recipient. Append must be safe for concurrent callers. ListUndelivered
// returns records oldest first. ListUndelivered followed by MarkAllDelivered
// is not one atomic transaction; a record appended between the two calls can
// be marked delivered without having been sent. That race is accepted.
type NotificationStore interface {
	Append(ctx context.Context, recipient, sender, kind string) (*Notification, error)
	ListUndelivered(ctx context.Context, recipient string) ([]*Notification, error)
	MarkAllDelivered(ctx context.Context, recipient string) error
}

// WakeupNotifier pokes the external push service so an offline recipient can
// be alerted out-of-band. Fire-and-forget: callers log failures and move on.
type WakeupNotifier interface {
	NotifyMissedCall(ctx context.Context, recipient, sender string) error
}

// Dependencies holds the external capabilities the relay core needs to
// operate. This struct is used for dependency injection.
type Dependencies struct {
	Fabric   GroupFabric
	Presence PresenceDirectory
	Store    NotificationStore
	Wakeup   WakeupNotifier
}
