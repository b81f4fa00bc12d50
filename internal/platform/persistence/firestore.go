// Package persistence provides concrete notification store implementations:
// a Firestore-backed store for production and an in-memory store for local
// runs and tests.
package persistence

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/biohack5079/cnc/pkg/signal"
)

// notificationDoc is the wrapper struct we store in Firestore. The document
// ID is the record's UUID.
type notificationDoc struct {
	Recipient string    `firestore:"recipient"`
	Sender    string    `firestore:"sender"`
	Kind      string    `firestore:"kind"`
	CreatedAt time.Time `firestore:"created_at"`
	Delivered bool      `firestore:"delivered"`
}

// FirestoreStore implements signal.NotificationStore using Google Cloud
// Firestore. Requires a composite index on (recipient, delivered, created_at).
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     zerolog.Logger
}

// NewFirestoreStore is the constructor for the FirestoreStore.
func NewFirestoreStore(client *firestore.Client, collection string, logger zerolog.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if collection == "" {
		return nil, fmt.Errorf("notification collection name cannot be empty")
	}
	return &FirestoreStore{
		client:     client,
		collection: collection,
		logger:     logger.With().Str("component", "FirestoreStore").Logger(),
	}, nil
}

// Append persists one undelivered notification record.
func (s *FirestoreStore) Append(ctx context.Context, recipient, sender, kind string) (*signal.Notification, error) {
	record := &signal.Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Sender:    sender,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}

	doc := &notificationDoc{
		Recipient: record.Recipient,
		Sender:    record.Sender,
		Kind:      record.Kind,
		CreatedAt: record.CreatedAt,
	}
	if _, err := s.client.Collection(s.collection).Doc(record.ID).Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}
	return record, nil
}

// ListUndelivered fetches the recipient's undelivered records, oldest first.
func (s *FirestoreStore) ListUndelivered(ctx context.Context, recipient string) ([]*signal.Notification, error) {
	query := s.client.Collection(s.collection).
		Where("recipient", "==", recipient).
		Where("delivered", "==", false).
		OrderBy("created_at", firestore.Asc)

	docSnaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list undelivered notifications: %w", err)
	}

	records := make([]*signal.Notification, 0, len(docSnaps))
	for _, snap := range docSnaps {
		var doc notificationDoc
		if err := snap.DataTo(&doc); err != nil {
			s.logger.Error().Err(err).Str("doc_id", snap.Ref.ID).
				Msg("Failed to unmarshal notification, skipping")
			continue
		}
		records = append(records, &signal.Notification{
			ID:        snap.Ref.ID,
			Recipient: doc.Recipient,
			Sender:    doc.Sender,
			Kind:      doc.Kind,
			CreatedAt: doc.CreatedAt,
			Delivered: doc.Delivered,
		})
	}
	return records, nil
}

// MarkAllDelivered flips every currently-undelivered record for the
// recipient. It re-queries rather than reusing a prior fetch, so a record
// appended in between can be flipped unsent; that race is accepted.
func (s *FirestoreStore) MarkAllDelivered(ctx context.Context, recipient string) error {
	query := s.client.Collection(s.collection).
		Where("recipient", "==", recipient).
		Where("delivered", "==", false)

	docSnaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("failed to query notifications for delivery mark: %w", err)
	}
	if len(docSnaps) == 0 {
		return nil
	}

	// A BulkWriter scales to arbitrary batch sizes; enqueue errors are
	// captured, write errors go to the writer's default logging handler.
	bulkWriter := s.client.BulkWriter(ctx)
	var firstErr error
	for _, snap := range docSnaps {
		update := []firestore.Update{{Path: "delivered", Value: true}}
		if _, err := bulkWriter.Update(snap.Ref, update); err != nil {
			s.logger.Error().Err(err).Str("doc_id", snap.Ref.ID).
				Msg("Failed to enqueue delivery mark")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	bulkWriter.End()

	if firstErr != nil {
		return fmt.Errorf("failed to enqueue one or more delivery marks: %w", firstErr)
	}
	s.logger.Debug().Str("recipient", recipient).Int("count", len(docSnaps)).
		Msg("Marked notification backlog delivered")
	return nil
}
