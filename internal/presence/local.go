// Package presence provides the single-process presence directory: an exact
// table of which connections currently represent each user identity.
package presence

import (
	"context"
	"sync"

	"github.com/biohack5079/cnc/pkg/signal"
)

// LocalDirectory maps identity -> set of connection IDs under a lock keyed
// access pattern. An identity appears in the table iff at least one of its
// connections is registered and not yet disconnected.
type LocalDirectory struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
}

// NewLocalDirectory creates an empty directory.
func NewLocalDirectory() *LocalDirectory {
	return &LocalDirectory{members: make(map[string]map[string]struct{})}
}

// Join records the member under the identity. Idempotent.
func (d *LocalDirectory) Join(_ context.Context, identity string, member signal.Member) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.members[identity] == nil {
		d.members[identity] = make(map[string]struct{})
	}
	d.members[identity][member.ID()] = struct{}{}
	return nil
}

// Leave removes the member from the identity's entry, dropping the entry
// when it becomes empty. Idempotent.
func (d *LocalDirectory) Leave(_ context.Context, identity string, member signal.Member) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conns, ok := d.members[identity]; ok {
		delete(conns, member.ID())
		if len(conns) == 0 {
			delete(d.members, identity)
		}
	}
	return nil
}

// IsPresent reports whether at least one connection represents the identity.
// Exact in this implementation.
func (d *LocalDirectory) IsPresent(_ context.Context, identity string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.members[identity]) > 0, nil
}
