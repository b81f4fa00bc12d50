package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
)

// PushSubscription is a browser push endpoint registered by a client so it
// can be woken up for missed calls while its page is closed.
type PushSubscription struct {
	UserID    string    `json:"userId" firestore:"user_id"`
	Endpoint  string    `json:"endpoint" firestore:"endpoint"`
	P256DH    string    `json:"p256dh" firestore:"p256dh"`
	Auth      string    `json:"auth" firestore:"auth"`
	CreatedAt time.Time `json:"createdAt" firestore:"created_at"`
}

// SubscriptionStore persists push subscriptions. Saving the same endpoint
// twice replaces the earlier record.
type SubscriptionStore interface {
	Save(ctx context.Context, sub *PushSubscription) error
}

// subscriptionDocID derives a stable document ID from the endpoint URL so
// that re-subscribing upserts instead of duplicating.
func subscriptionDocID(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:])
}

// FirestoreSubscriptionStore stores push subscriptions in a Firestore
// collection, one document per endpoint.
type FirestoreSubscriptionStore struct {
	client     *firestore.Client
	collection string
	logger     zerolog.Logger
}

// NewFirestoreSubscriptionStore creates a Firestore-backed subscription store.
func NewFirestoreSubscriptionStore(client *firestore.Client, collection string, logger zerolog.Logger) (*FirestoreSubscriptionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}
	return &FirestoreSubscriptionStore{
		client:     client,
		collection: collection,
		logger:     logger.With().Str("component", "FirestoreSubscriptionStore").Logger(),
	}, nil
}

// Save upserts a subscription keyed by its endpoint.
func (s *FirestoreSubscriptionStore) Save(ctx context.Context, sub *PushSubscription) error {
	docID := subscriptionDocID(sub.Endpoint)
	_, err := s.client.Collection(s.collection).Doc(docID).Set(ctx, sub)
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	s.logger.Debug().Str("user_id", sub.UserID).Msg("Push subscription saved.")
	return nil
}

// MemorySubscriptionStore is an in-memory SubscriptionStore for local runs
// and tests.
type MemorySubscriptionStore struct {
	mu   sync.Mutex
	subs map[string]*PushSubscription
}

// NewMemorySubscriptionStore creates an empty store.
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{subs: make(map[string]*PushSubscription)}
}

// Save upserts a subscription keyed by its endpoint.
func (s *MemorySubscriptionStore) Save(_ context.Context, sub *PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *sub
	s.subs[subscriptionDocID(sub.Endpoint)] = &clone
	return nil
}

// Get returns the stored subscription for an endpoint, if any.
func (s *MemorySubscriptionStore) Get(endpoint string) (*PushSubscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subscriptionDocID(endpoint)]
	return sub, ok
}

// Count returns the number of stored subscriptions.
func (s *MemorySubscriptionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
