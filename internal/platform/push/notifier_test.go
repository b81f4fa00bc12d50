package push_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biohack5079/cnc/internal/platform/push"
)

type capturePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *capturePublisher) Publish(subj string, data []byte) error {
	p.subject = subj
	p.data = data
	return p.err
}

func TestNotifier_PublishesWakeupEvent(t *testing.T) {
	publisher := &capturePublisher{}
	notifier, err := push.NewNotifier(publisher, "push.wakeup", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, notifier.NotifyMissedCall(context.Background(), "alice", "bob"))

	assert.Equal(t, "push.wakeup", publisher.subject)

	var event map[string]string
	require.NoError(t, json.Unmarshal(publisher.data, &event))
	assert.Equal(t, "missed_call", event["type"])
	assert.Equal(t, "alice", event["recipient"])
	assert.Equal(t, "bob", event["sender"])
	assert.NotEmpty(t, event["timestamp"])
}

func TestNotifier_PublishFailureIsReturned(t *testing.T) {
	publisher := &capturePublisher{err: assert.AnError}
	notifier, err := push.NewNotifier(publisher, "push.wakeup", zerolog.Nop())
	require.NoError(t, err)

	assert.Error(t, notifier.NotifyMissedCall(context.Background(), "alice", "bob"))
}

func TestNewNotifier_Validation(t *testing.T) {
	_, err := push.NewNotifier(nil, "push.wakeup", zerolog.Nop())
	assert.Error(t, err)

	_, err = push.NewNotifier(&capturePublisher{}, "", zerolog.Nop())
	assert.Error(t, err)
}

func TestNopNotifier(t *testing.T) {
	assert.NoError(t, push.NopNotifier{}.NotifyMissedCall(context.Background(), "a", "b"))
}
