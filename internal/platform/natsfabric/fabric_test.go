package natsfabric_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biohack5079/cnc/internal/platform/natsfabric"
	"github.com/biohack5079/cnc/pkg/signal"
)

// stubConn captures subscriptions and publishes without a live broker.
type stubConn struct {
	mu        sync.Mutex
	handlers  map[string][]nats.MsgHandler
	published map[string][][]byte
}

func newStubConn() *stubConn {
	return &stubConn{
		handlers:  make(map[string][]nats.MsgHandler),
		published: make(map[string][][]byte),
	}
}

func (c *stubConn) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[subj] = append(c.handlers[subj], cb)
	return &nats.Subscription{}, nil
}

func (c *stubConn) Publish(subj string, data []byte) error {
	c.mu.Lock()
	c.published[subj] = append(c.published[subj], data)
	handlers := append([]nats.MsgHandler(nil), c.handlers[subj]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(&nats.Msg{Subject: subj, Data: data})
	}
	return nil
}

type recordingMember struct {
	id string

	mu       sync.Mutex
	received []*signal.Envelope
}

func (m *recordingMember) ID() string { return m.id }

func (m *recordingMember) Deliver(env *signal.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, env)
	return nil
}

func (m *recordingMember) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func TestFabric_PublishReachesSubscribedMember(t *testing.T) {
	ctx := context.Background()
	conn := newStubConn()
	f, err := natsfabric.New(conn, "", zerolog.Nop())
	require.NoError(t, err)

	member := &recordingMember{id: "conn-1"}
	require.NoError(t, f.Subscribe(ctx, "alice", member))

	env := signal.NewEnvelope("offer", map[string]any{signal.KeyTarget: "alice", "sdp": "v=0"})
	require.NoError(t, f.Publish(ctx, "alice", env))

	require.Equal(t, 1, member.count())
	member.mu.Lock()
	got := member.received[0]
	member.mu.Unlock()
	assert.Equal(t, "offer", got.Type)
	assert.Equal(t, "v=0", got.Payload["sdp"])
}

func TestFabric_DuplicateSubscribeCreatesOneSubscription(t *testing.T) {
	ctx := context.Background()
	conn := newStubConn()
	f, err := natsfabric.New(conn, "", zerolog.Nop())
	require.NoError(t, err)

	member := &recordingMember{id: "conn-1"}
	require.NoError(t, f.Subscribe(ctx, "alice", member))
	require.NoError(t, f.Subscribe(ctx, "alice", member))

	require.NoError(t, f.Publish(ctx, "alice", signal.NewEnvelope("offer", nil)))
	assert.Equal(t, 1, member.count())
}

func TestFabric_NoCrossGroupLeakage(t *testing.T) {
	ctx := context.Background()
	conn := newStubConn()
	f, err := natsfabric.New(conn, "", zerolog.Nop())
	require.NoError(t, err)

	alice := &recordingMember{id: "conn-a"}
	require.NoError(t, f.Subscribe(ctx, "alice", alice))

	require.NoError(t, f.Publish(ctx, "bob", signal.NewEnvelope("offer", nil)))
	assert.Zero(t, alice.count())
}

func TestFabric_UnsubscribeOfUnknownMemberIsNoOp(t *testing.T) {
	conn := newStubConn()
	f, err := natsfabric.New(conn, "", zerolog.Nop())
	require.NoError(t, err)

	assert.NoError(t, f.Unsubscribe(context.Background(), "alice", &recordingMember{id: "conn-1"}))
}

func TestFabric_UndecodableMessageIsDropped(t *testing.T) {
	ctx := context.Background()
	conn := newStubConn()
	f, err := natsfabric.New(conn, "", zerolog.Nop())
	require.NoError(t, err)

	member := &recordingMember{id: "conn-1"}
	require.NoError(t, f.Subscribe(ctx, "alice", member))

	subject := natsfabric.DefaultSubjectPrefix + "." + natsfabric.EncodeGroup("alice")
	for _, h := range conn.handlers[subject] {
		h(&nats.Msg{Subject: subject, Data: []byte("not json")})
	}
	assert.Zero(t, member.count())
}

func TestEncodeGroup_TokenSafe(t *testing.T) {
	// Group names are client-supplied UUIDs or arbitrary strings; the
	// encoded form must never contain NATS token separators or wildcards.
	for _, group := range []string{
		"9b2d1c54-09e7-4a3e-a7b2-5a1f0cbe21aa",
		"all_users",
		"weird.group.*.>",
		"spaces and unicode é",
	} {
		encoded := natsfabric.EncodeGroup(group)
		assert.NotContains(t, encoded, ".")
		assert.NotContains(t, encoded, "*")
		assert.NotContains(t, encoded, ">")
		assert.NotContains(t, encoded, " ")
	}

	// Distinct groups must map to distinct subjects.
	assert.NotEqual(t, natsfabric.EncodeGroup("alice"), natsfabric.EncodeGroup("bob"))
}

func TestFabric_WireFormatIsEnvelopeJSON(t *testing.T) {
	ctx := context.Background()
	conn := newStubConn()
	f, err := natsfabric.New(conn, "relay.groups", zerolog.Nop())
	require.NoError(t, err)

	env := signal.NewEnvelope("answer", map[string]any{signal.KeyFrom: "bob"})
	require.NoError(t, f.Publish(ctx, "alice", env))

	subject := "relay.groups." + natsfabric.EncodeGroup("alice")
	require.Len(t, conn.published[subject], 1)

	var decoded signal.Envelope
	require.NoError(t, json.Unmarshal(conn.published[subject][0], &decoded))
	assert.Equal(t, "answer", decoded.Type)
	assert.Equal(t, "bob", decoded.From())

	// Nothing leaked outside the configured prefix.
	for subj := range conn.published {
		assert.True(t, strings.HasPrefix(subj, "relay.groups."))
	}
}
