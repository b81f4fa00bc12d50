// Package push publishes missed-call wake-up events for the external push
// service. The relay never talks Web Push itself; it only emits the event
// that lets the push service decide to alert an offline user.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// eventPublisher defines the interface we need from nats.Conn.
type eventPublisher interface {
	Publish(subj string, data []byte) error
}

// wakeupEvent is the wire form consumed by the push service.
type wakeupEvent struct {
	Type      string `json:"type"`
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// Notifier implements signal.WakeupNotifier over a broker subject.
type Notifier struct {
	publisher eventPublisher
	subject   string
	logger    zerolog.Logger
}

// NewNotifier is the constructor for the Notifier.
func NewNotifier(publisher eventPublisher, subject string, logger zerolog.Logger) (*Notifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if subject == "" {
		return nil, fmt.Errorf("wakeup subject cannot be empty")
	}
	return &Notifier{
		publisher: publisher,
		subject:   subject,
		logger:    logger.With().Str("component", "PushNotifier").Logger(),
	}, nil
}

// NotifyMissedCall emits one wake-up event. Callers treat failures as
// non-fatal; the notification record itself is already persisted.
func (n *Notifier) NotifyMissedCall(_ context.Context, recipient, sender string) error {
	event := wakeupEvent{
		Type:      "missed_call",
		Recipient: recipient,
		Sender:    sender,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal wakeup event: %w", err)
	}
	if err := n.publisher.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish wakeup event: %w", err)
	}
	n.logger.Debug().Str("recipient", recipient).Msg("Published missed-call wakeup")
	return nil
}

// NopNotifier is the local-mode signal.WakeupNotifier: it does nothing.
type NopNotifier struct{}

// NotifyMissedCall discards the event.
func (NopNotifier) NotifyMissedCall(_ context.Context, _, _ string) error { return nil }
