package presence_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/biohack5079/cnc/internal/platform/presence"
	"github.com/biohack5079/cnc/pkg/signal"
)

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	args := m.Called(ctx, key, values)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockRedis) HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd {
	args := m.Called(ctx, key, fields)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

type stubMember struct{ id string }

func (m *stubMember) ID() string                       { return m.id }
func (m *stubMember) Deliver(_ *signal.Envelope) error { return nil }

func TestRedisDirectory_JoinWritesHashFieldAndTTL(t *testing.T) {
	client := new(mockRedis)
	dir, err := presence.NewRedisDirectory(client, 30*time.Second, "instance-1", zerolog.Nop())
	require.NoError(t, err)

	client.On("HSet", mock.Anything, "presence:alice", mock.MatchedBy(func(values []interface{}) bool {
		if len(values) != 2 || values[0] != "conn-1" {
			return false
		}
		var info signal.ConnectionInfo
		if err := json.Unmarshal(values[1].([]byte), &info); err != nil {
			return false
		}
		return info.ServerInstanceID == "instance-1"
	})).Return(redis.NewIntResult(1, nil))
	client.On("Expire", mock.Anything, "presence:alice", 30*time.Second).
		Return(redis.NewBoolResult(true, nil))

	require.NoError(t, dir.Join(context.Background(), "alice", &stubMember{id: "conn-1"}))
	client.AssertExpectations(t)
}

func TestRedisDirectory_TTLRefreshFailureIsNonFatal(t *testing.T) {
	client := new(mockRedis)
	dir, err := presence.NewRedisDirectory(client, time.Minute, "instance-1", zerolog.Nop())
	require.NoError(t, err)

	client.On("HSet", mock.Anything, "presence:alice", mock.Anything).
		Return(redis.NewIntResult(1, nil))
	client.On("Expire", mock.Anything, "presence:alice", time.Minute).
		Return(redis.NewBoolResult(false, assert.AnError))

	assert.NoError(t, dir.Join(context.Background(), "alice", &stubMember{id: "conn-1"}))
}

func TestRedisDirectory_LeaveDeletesField(t *testing.T) {
	client := new(mockRedis)
	dir, err := presence.NewRedisDirectory(client, time.Minute, "instance-1", zerolog.Nop())
	require.NoError(t, err)

	client.On("HDel", mock.Anything, "presence:alice", []string{"conn-1"}).
		Return(redis.NewIntResult(1, nil))

	require.NoError(t, dir.Leave(context.Background(), "alice", &stubMember{id: "conn-1"}))
	client.AssertExpectations(t)
}

func TestRedisDirectory_IsPresent(t *testing.T) {
	client := new(mockRedis)
	dir, err := presence.NewRedisDirectory(client, time.Minute, "instance-1", zerolog.Nop())
	require.NoError(t, err)

	client.On("Exists", mock.Anything, []string{"presence:alice"}).
		Return(redis.NewIntResult(1, nil)).Once()
	client.On("Exists", mock.Anything, []string{"presence:ghost"}).
		Return(redis.NewIntResult(0, nil)).Once()

	present, err := dir.IsPresent(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, present)

	present, err = dir.IsPresent(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestRedisDirectory_IsPresentSurfacesErrors(t *testing.T) {
	client := new(mockRedis)
	dir, err := presence.NewRedisDirectory(client, time.Minute, "instance-1", zerolog.Nop())
	require.NoError(t, err)

	client.On("Exists", mock.Anything, mock.Anything).
		Return(redis.NewIntResult(0, assert.AnError))

	_, err = dir.IsPresent(context.Background(), "alice")
	assert.Error(t, err)
}

func TestNewRedisDirectory_Validation(t *testing.T) {
	_, err := presence.NewRedisDirectory(nil, time.Minute, "i", zerolog.Nop())
	assert.Error(t, err)

	_, err = presence.NewRedisDirectory(new(mockRedis), 0, "i", zerolog.Nop())
	assert.Error(t, err)
}
