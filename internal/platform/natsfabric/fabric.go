// Package natsfabric implements the group messaging fabric on NATS subjects,
// giving the relay cross-process reach: every server instance subscribes its
// local connections to the same subject space, so a publish on any instance
// fans out to the group's members everywhere.
package natsfabric

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/biohack5079/cnc/pkg/signal"
)

// DefaultSubjectPrefix is the namespace groups are mapped into.
const DefaultSubjectPrefix = "signal.group"

// natsConn defines the interface we need from nats.Conn.
type natsConn interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subj string, data []byte) error
}

type subKey struct {
	group  string
	member string
}

// Fabric is a signal.GroupFabric backed by a NATS connection. One NATS
// subscription exists per (group, local member) pair; a publish to a group
// nobody subscribed to anywhere is absorbed by the broker.
type Fabric struct {
	conn   natsConn
	prefix string
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[subKey]*nats.Subscription
}

// New creates a fabric on an established NATS connection.
func New(conn natsConn, prefix string, logger zerolog.Logger) (*Fabric, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Fabric{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("component", "NATSFabric").Logger(),
		subs:   make(map[subKey]*nats.Subscription),
	}, nil
}

// Subscribe joins the member to the group's subject. Idempotent per
// (group, member) pair.
func (f *Fabric) Subscribe(_ context.Context, group string, member signal.Member) error {
	key := subKey{group: group, member: member.ID()}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[key]; ok {
		return nil
	}

	sub, err := f.conn.Subscribe(f.subjectFor(group), func(msg *nats.Msg) {
		var env signal.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			f.logger.Warn().Err(err).Str("subject", msg.Subject).
				Msg("Dropping undecodable fabric message")
			return
		}
		if err := member.Deliver(&env); err != nil {
			f.logger.Warn().Err(err).Str("group", group).Str("member", member.ID()).
				Msg("Dropping message for member")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to group %q: %w", group, err)
	}
	f.subs[key] = sub
	return nil
}

// Unsubscribe drops the member's subscription to the group. A member that
// never subscribed is a no-op.
func (f *Fabric) Unsubscribe(_ context.Context, group string, member signal.Member) error {
	key := subKey{group: group, member: member.ID()}

	f.mu.Lock()
	sub, ok := f.subs[key]
	delete(f.subs, key)
	f.mu.Unlock()

	if !ok {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from group %q: %w", group, err)
	}
	return nil
}

// Publish sends the envelope to the group's subject.
func (f *Fabric) Publish(_ context.Context, group string, envelope *signal.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := f.conn.Publish(f.subjectFor(group), data); err != nil {
		return fmt.Errorf("failed to publish to group %q: %w", group, err)
	}
	return nil
}

// subjectFor maps an opaque group name into the subject namespace. Identities
// are client-supplied strings, so they are encoded rather than trusted to be
// valid NATS tokens.
func (f *Fabric) subjectFor(group string) string {
	return f.prefix + "." + EncodeGroup(group)
}

// EncodeGroup returns the token-safe form of a group name.
func EncodeGroup(group string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(group))
}
