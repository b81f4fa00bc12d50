package signal

import "time"

// Notification is a persisted record of an event that could not be delivered
// live, currently only missed calls. It is created by the relay when a
// call-request targets an offline recipient, read and flipped to delivered on
// that recipient's next registration, and never deleted by the relay.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Sender    string    `json:"sender"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
	Delivered bool      `json:"delivered"`
}

// NotificationSummary is the wire form carried inside a registered ack's
// payload. Timestamp is RFC 3339.
type NotificationSummary struct {
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

// Summary converts a record to its wire form.
func (n *Notification) Summary() NotificationSummary {
	return NotificationSummary{
		Sender:    n.Sender,
		Timestamp: n.CreatedAt.UTC().Format(time.RFC3339),
		Type:      n.Kind,
	}
}

// Summaries converts a backlog, preserving order.
func Summaries(records []*Notification) []NotificationSummary {
	out := make([]NotificationSummary, 0, len(records))
	for _, r := range records {
		out = append(out, r.Summary())
	}
	return out
}
