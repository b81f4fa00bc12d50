package signal_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biohack5079/cnc/pkg/signal"
)

func TestEnvelope_Accessors(t *testing.T) {
	raw := `{"type":"offer","payload":{"target":"alice","uuid":"bob","sdp":"v=0..."}}`

	var env signal.Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	assert.Equal(t, "offer", env.Type)
	assert.Equal(t, "alice", env.TargetID())
	assert.Equal(t, "bob", env.UserID())
	assert.Empty(t, env.From())

	// Opaque payload content survives untouched.
	assert.Equal(t, "v=0...", env.Payload["sdp"])
}

func TestEnvelope_SetFrom(t *testing.T) {
	env := &signal.Envelope{Type: "offer"}
	env.SetFrom("bob")
	assert.Equal(t, "bob", env.From())
}

func TestEnvelope_MissingOrWrongTypedKeys(t *testing.T) {
	var env signal.Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"type":"offer","payload":{"target":42}}`), &env))

	// A non-string target is the same as no target at all.
	assert.Empty(t, env.TargetID())

	noPayload := &signal.Envelope{Type: "answer"}
	assert.Empty(t, noPayload.TargetID())
	assert.Empty(t, noPayload.UserID())
}

func TestNotification_Summary(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	record := &signal.Notification{
		ID:        "id-1",
		Recipient: "alice",
		Sender:    "bob",
		Kind:      signal.KindMissedCall,
		CreatedAt: created,
	}

	summary := record.Summary()
	assert.Equal(t, "bob", summary.Sender)
	assert.Equal(t, signal.KindMissedCall, summary.Type)
	assert.Equal(t, "2025-06-01T12:30:00Z", summary.Timestamp)
}

func TestSummaries_PreservesOrder(t *testing.T) {
	records := []*signal.Notification{
		{Sender: "first", Kind: signal.KindMissedCall},
		{Sender: "second", Kind: signal.KindMissedCall},
	}
	summaries := signal.Summaries(records)
	require.Len(t, summaries, 2)
	assert.Equal(t, "first", summaries[0].Sender)
	assert.Equal(t, "second", summaries[1].Sender)
}
