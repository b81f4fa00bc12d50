// Package signal contains the public domain models, interfaces, and wire
// types for the signaling relay. It defines the contract for interacting
// with the service.
package signal

// Message type tags the relay inspects. Any other type is an opaque
// signaling payload (offer, answer, ice-candidate, ...) and is forwarded
// verbatim.
const (
	TypeRegister    = "register"
	TypeRegistered  = "registered"
	TypeCallRequest = "call-request"
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
)

// Payload keys the relay reads. Everything else in a payload is opaque.
const (
	KeyUUID          = "uuid"
	KeyTarget        = "target"
	KeyFrom          = "from"
	KeyNotifications = "notifications"
)

// KindMissedCall is the only notification kind the relay currently records.
const KindMissedCall = "missed_call"

// Envelope is the wire unit exchanged with clients: a type tag plus an
// opaque key-value payload. It is never persisted.
type Envelope struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope with a non-nil payload.
func NewEnvelope(msgType string, payload map[string]any) *Envelope {
	if payload == nil {
		payload = make(map[string]any)
	}
	return &Envelope{Type: msgType, Payload: payload}
}

// UserID returns the payload "uuid" value, or "" if absent or not a string.
func (e *Envelope) UserID() string {
	return e.stringField(KeyUUID)
}

// TargetID returns the payload "target" value, or "" if absent or not a string.
func (e *Envelope) TargetID() string {
	return e.stringField(KeyTarget)
}

// From returns the payload "from" value, or "" if absent or not a string.
func (e *Envelope) From() string {
	return e.stringField(KeyFrom)
}

// SetFrom stamps the sender identity onto the payload before forwarding.
func (e *Envelope) SetFrom(id string) {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[KeyFrom] = id
}

func (e *Envelope) stringField(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// ConnectionInfo holds details about a user's real-time connection.
// This is stored in the distributed presence directory.
type ConnectionInfo struct {
	ServerInstanceID string `json:"serverInstanceId"`
	ConnectedAt      int64  `json:"connectedAt"`
}
