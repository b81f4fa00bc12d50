// Package fabric provides the in-process implementation of the group
// messaging fabric, used in single-instance deployments and in tests.
package fabric

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/biohack5079/cnc/pkg/signal"
)

// MemoryFabric is a process-local signal.GroupFabric. Groups are created
// lazily on first subscribe and removed when their last member leaves.
type MemoryFabric struct {
	mu     sync.RWMutex
	groups map[string]map[string]signal.Member
	logger zerolog.Logger
}

// NewMemoryFabric creates an empty in-process fabric.
func NewMemoryFabric(logger zerolog.Logger) *MemoryFabric {
	return &MemoryFabric{
		groups: make(map[string]map[string]signal.Member),
		logger: logger.With().Str("component", "MemoryFabric").Logger(),
	}
}

// Subscribe adds the member to the group. Re-subscribing is a no-op.
func (f *MemoryFabric) Subscribe(_ context.Context, group string, member signal.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[group] == nil {
		f.groups[group] = make(map[string]signal.Member)
	}
	f.groups[group][member.ID()] = member
	return nil
}

// Unsubscribe removes the member from the group. Removing a member that is
// not subscribed is a no-op.
func (f *MemoryFabric) Unsubscribe(_ context.Context, group string, member signal.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if members, ok := f.groups[group]; ok {
		delete(members, member.ID())
		if len(members) == 0 {
			delete(f.groups, group)
		}
	}
	return nil
}

// Publish delivers the envelope to every current member of the group, each
// exactly once. A group with no subscribers swallows the message. Delivery
// errors are logged and do not abort delivery to the remaining members.
func (f *MemoryFabric) Publish(_ context.Context, group string, envelope *signal.Envelope) error {
	f.mu.RLock()
	members := make([]signal.Member, 0, len(f.groups[group]))
	for _, m := range f.groups[group] {
		members = append(members, m)
	}
	f.mu.RUnlock()

	// Deliver outside the lock so a slow member cannot stall subscribes.
	for _, m := range members {
		if err := m.Deliver(envelope); err != nil {
			f.logger.Warn().Err(err).Str("group", group).Str("member", m.ID()).
				Msg("Dropping message for member")
		}
	}
	return nil
}

// MemberCount reports how many members are subscribed to a group.
func (f *MemoryFabric) MemberCount(group string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.groups[group])
}
