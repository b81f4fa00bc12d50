package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/biohack5079/cnc/pkg/signal"
)

// MemoryStore is an in-memory signal.NotificationStore used in local run
// mode and in tests. Records are kept per recipient in append order, which
// doubles as oldest-first.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]*signal.Notification
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]*signal.Notification)}
}

// Append adds an undelivered record for the recipient.
func (s *MemoryStore) Append(_ context.Context, recipient, sender, kind string) (*signal.Notification, error) {
	record := &signal.Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Sender:    sender,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recipient] = append(s.records[recipient], record)
	return record, nil
}

// ListUndelivered returns copies of the recipient's undelivered records,
// oldest first.
func (s *MemoryStore) ListUndelivered(_ context.Context, recipient string) ([]*signal.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*signal.Notification
	for _, r := range s.records[recipient] {
		if !r.Delivered {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

// MarkAllDelivered flips every undelivered record for the recipient.
func (s *MemoryStore) MarkAllDelivered(_ context.Context, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records[recipient] {
		r.Delivered = true
	}
	return nil
}
