// Package session implements the per-connection signaling state machine:
// register, forward, call-request, and disconnect transitions over the group
// fabric, presence directory, and notification store.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/biohack5079/cnc/pkg/signal"
)

// Session owns one live client connection. It is created when the transport
// is accepted, bound to a user identity by a register message, and torn down
// by Disconnect. Inbound messages are handled strictly in arrival order on
// the caller's goroutine; Deliver runs on fabric goroutines.
type Session struct {
	id             string
	conn           signal.Member
	deps           *signal.Dependencies
	broadcastGroup string
	logger         zerolog.Logger

	mu         sync.Mutex
	userID     string
	registered bool
	closed     bool
}

// New creates a session for an accepted connection. conn is the outbound
// delivery handle for this connection, typically the WebSocket write pump.
func New(conn signal.Member, deps *signal.Dependencies, broadcastGroup string, logger zerolog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:             id,
		conn:           conn,
		deps:           deps,
		broadcastGroup: broadcastGroup,
		logger:         logger.With().Str("component", "Session").Str("session", id).Logger(),
	}
}

// ID identifies this connection inside the fabric and directory.
func (s *Session) ID() string { return s.id }

// UserID returns the identity this session registered as, or "".
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Deliver receives an envelope published to one of this session's groups and
// relays it to the client. Presence broadcasts that originated from this
// session's own identity are suppressed here, so a client never sees its own
// user_joined/user_left echo.
func (s *Session) Deliver(envelope *signal.Envelope) error {
	s.mu.Lock()
	closed, userID := s.closed, s.userID
	s.mu.Unlock()

	if closed {
		return nil
	}
	if envelope.Type == signal.TypeUserJoined || envelope.Type == signal.TypeUserLeft {
		if envelope.UserID() == userID {
			return nil
		}
	}
	return s.conn.Deliver(envelope)
}

// Handle processes one inbound message. Unknown or unroutable messages are
// logged and dropped; the connection always stays open.
func (s *Session) Handle(ctx context.Context, envelope *signal.Envelope) {
	if envelope.Type == signal.TypeRegister {
		s.handleRegister(ctx, envelope)
		return
	}

	s.mu.Lock()
	registered := s.registered
	s.mu.Unlock()
	if !registered {
		s.logger.Warn().Str("type", envelope.Type).Msg("Dropping message from unregistered session")
		return
	}

	if envelope.Type == signal.TypeCallRequest {
		s.handleCallRequest(ctx, envelope)
		return
	}
	s.handleForward(ctx, envelope)
}

// handleRegister binds the session to the identity in the register payload.
// A repeated register on the same session is treated as an idempotent rebind:
// the previous identity's directory entry and group membership are dropped
// before the new ones are created, so no stale entry survives.
func (s *Session) handleRegister(ctx context.Context, envelope *signal.Envelope) {
	userID := envelope.UserID()
	if userID == "" {
		s.logger.Warn().Msg("Register message without uuid, ignoring")
		return
	}
	log := s.logger.With().Str("user", userID).Logger()

	s.mu.Lock()
	previous := ""
	if s.registered && s.userID != userID {
		previous = s.userID
	}
	alreadyBound := s.registered && s.userID == userID
	s.userID = userID
	s.registered = true
	s.mu.Unlock()

	if previous != "" {
		log.Info().Str("previous", previous).Msg("Session re-registering under new identity")
		s.leaveIdentity(ctx, previous)
	}

	if err := s.deps.Presence.Join(ctx, userID, s); err != nil {
		log.Error().Err(err).Msg("Failed to join presence directory")
	}
	if err := s.deps.Fabric.Subscribe(ctx, userID, s); err != nil {
		log.Error().Err(err).Msg("Failed to subscribe to identity group")
	}
	if err := s.deps.Fabric.Subscribe(ctx, s.broadcastGroup, s); err != nil {
		log.Error().Err(err).Msg("Failed to subscribe to broadcast group")
	}

	// A failed backlog fetch degrades to an empty list: registration itself
	// must not fail because storage is unavailable.
	backlog, err := s.deps.Store.ListUndelivered(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch notification backlog")
		backlog = nil
	}

	ack := signal.NewEnvelope(signal.TypeRegistered, map[string]any{
		signal.KeyUUID:          userID,
		signal.KeyNotifications: signal.Summaries(backlog),
	})
	if err := s.conn.Deliver(ack); err != nil {
		log.Warn().Err(err).Msg("Failed to deliver registered ack")
	}

	// Mark only after a non-empty fetch. A record appended between the fetch
	// and the mark can be flipped without having been sent; accepted race.
	if len(backlog) > 0 {
		if err := s.deps.Store.MarkAllDelivered(ctx, userID); err != nil {
			log.Error().Err(err).Msg("Failed to mark notification backlog delivered")
		}
	}

	joined := signal.NewEnvelope(signal.TypeUserJoined, map[string]any{signal.KeyUUID: userID})
	if err := s.deps.Fabric.Publish(ctx, s.broadcastGroup, joined); err != nil {
		log.Error().Err(err).Msg("Failed to broadcast user_joined")
	}

	if alreadyBound {
		log.Debug().Msg("Session registered again under the same identity")
	} else {
		log.Info().Msg("Session registered")
	}
}

// handleForward relays an addressed signaling message to the target's
// identity group. Delivery is best-effort: if the target is absent the
// fabric drops the message silently and the sender is never told.
func (s *Session) handleForward(ctx context.Context, envelope *signal.Envelope) {
	target := envelope.TargetID()
	if target == "" {
		s.logger.Warn().Str("type", envelope.Type).Msg("Dropping forward without target")
		return
	}

	envelope.SetFrom(s.UserID())
	if err := s.deps.Fabric.Publish(ctx, target, envelope); err != nil {
		s.logger.Error().Err(err).Str("type", envelope.Type).Str("target", target).
			Msg("Failed to publish forwarded message")
	}
}

// handleCallRequest live-delivers when the target looks present, otherwise
// records a missed call for the target's next registration. A presence check
// failure fails open: we attempt live delivery rather than erroring the
// caller, matching the best-effort policy for every other message type.
func (s *Session) handleCallRequest(ctx context.Context, envelope *signal.Envelope) {
	target := envelope.TargetID()
	if target == "" {
		s.logger.Warn().Msg("Dropping call-request without target")
		return
	}
	if envelope.UserID() == "" {
		s.logger.Warn().Str("target", target).Msg("Dropping call-request without caller uuid")
		return
	}
	userID := s.UserID()
	log := s.logger.With().Str("user", userID).Str("target", target).Logger()

	present, err := s.deps.Presence.IsPresent(ctx, target)
	if err != nil {
		log.Error().Err(err).Msg("Presence check failed, attempting live delivery")
		present = true
	}

	if present {
		envelope.SetFrom(userID)
		if err := s.deps.Fabric.Publish(ctx, target, envelope); err != nil {
			log.Error().Err(err).Msg("Failed to publish call-request")
		}
		return
	}

	log.Info().Msg("Target offline, recording missed call")
	if _, err := s.deps.Store.Append(ctx, target, userID, signal.KindMissedCall); err != nil {
		log.Error().Err(err).Msg("Failed to record missed call")
		return
	}
	if err := s.deps.Wakeup.NotifyMissedCall(ctx, target, userID); err != nil {
		log.Warn().Err(err).Msg("Failed to send missed-call wakeup")
	}
}

// Disconnect tears the session down: leave all groups, drop the presence
// entry, and announce user_left if the session had registered. Idempotent;
// a never-registered session produces no group or broadcast side effects.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	registered, userID := s.registered, s.userID
	s.mu.Unlock()

	if !registered {
		s.logger.Debug().Msg("Unregistered session disconnected")
		return
	}

	s.leaveIdentity(ctx, userID)
	if err := s.deps.Fabric.Unsubscribe(ctx, s.broadcastGroup, s); err != nil {
		s.logger.Error().Err(err).Msg("Failed to leave broadcast group")
	}

	left := signal.NewEnvelope(signal.TypeUserLeft, map[string]any{signal.KeyUUID: userID})
	if err := s.deps.Fabric.Publish(ctx, s.broadcastGroup, left); err != nil {
		s.logger.Error().Err(err).Str("user", userID).Msg("Failed to broadcast user_left")
	}
	s.logger.Info().Str("user", userID).Msg("Session disconnected")
}

// leaveIdentity drops one identity's group membership and presence entry.
func (s *Session) leaveIdentity(ctx context.Context, identity string) {
	if err := s.deps.Fabric.Unsubscribe(ctx, identity, s); err != nil {
		s.logger.Error().Err(err).Str("user", identity).Msg("Failed to leave identity group")
	}
	if err := s.deps.Presence.Leave(ctx, identity, s); err != nil {
		s.logger.Error().Err(err).Str("user", identity).Msg("Failed to leave presence directory")
	}
}
