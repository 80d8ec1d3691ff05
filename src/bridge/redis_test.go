package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// mockBroadcastTarget records events forwarded from the bridge.
type mockBroadcastTarget struct {
	mu       sync.Mutex
	received []types.Event
}

func (m *mockBroadcastTarget) BroadcastToLocal(evt types.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, evt)
}

func (m *mockBroadcastTarget) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

// scriptedReceiver returns its queued results in order, then blocks until
// the context ends.
type scriptedReceiver struct {
	mu      sync.Mutex
	results []receiveResult
}

type receiveResult struct {
	msg *redis.Message
	err error
}

func (r *scriptedReceiver) ReceiveMessage(ctx context.Context) (*redis.Message, error) {
	r.mu.Lock()
	if len(r.results) > 0 {
		next := r.results[0]
		r.results = r.results[1:]
		r.mu.Unlock()
		return next.msg, next.err
	}
	r.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func sampleEvent() types.Event {
	return types.Event{
		Type:           types.EventTaskCreated,
		Payload:        json.RawMessage(`{"task":{"id":"t-1"}}`),
		UserID:         "u-1",
		OrganizationID: "org-a",
		Timestamp:      "2026-02-03T04:05:06.789Z",
	}
}

func TestEnvelopeRoundTripKeepsTimestamp(t *testing.T) {
	data, err := encodeEnvelope("node-1", sampleEvent())
	require.NoError(t, err)

	env, err := decodeEnvelope(data)
	require.NoError(t, err)

	assert.Equal(t, "node-1", env.InstanceID)
	assert.Equal(t, types.EventTaskCreated, env.Event.Type)
	assert.Equal(t, "org-a", env.Event.OrganizationID)
	assert.Equal(t, "2026-02-03T04:05:06.789Z", env.Event.Timestamp)
	assert.JSONEq(t, `{"task":{"id":"t-1"}}`, string(env.Event.Payload))
}

func TestDecodeEnvelopeRejectsInvalidEvent(t *testing.T) {
	_, err := decodeEnvelope([]byte(`{"instance_id":"x","event":{"payload":{}}}`))
	assert.ErrorIs(t, err, types.ErrInvalidEvent)

	_, err = decodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func newTestBridge(t *testing.T, target BroadcastTarget) *RedisBridge {
	t.Helper()
	rb, err := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())
	require.NoError(t, err)
	return rb
}

func TestRelaySkipsOwnEvents(t *testing.T) {
	target := &mockBroadcastTarget{}
	rb := newTestBridge(t, target)

	own, err := encodeEnvelope(rb.instanceID, sampleEvent())
	require.NoError(t, err)
	foreign, err := encodeEnvelope("other-node", sampleEvent())
	require.NoError(t, err)

	rb.relay(own)
	rb.relay(foreign)
	rb.relay([]byte(`garbage`))

	require.Len(t, target.received, 1)
	assert.Equal(t, "org-a", target.received[0].OrganizationID)
}

func TestRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_ADDR", "redis.example.com:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_REALTIME_PREFIX", "staging:")

	cfg := RedisConfigFromEnv()
	assert.Equal(t, "redis.example.com:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "staging:events", cfg.Channel())

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "redis.example.com:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
}

func TestRedisConfigFromEnvInvalidDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := RedisConfigFromEnv()
	assert.Equal(t, 0, cfg.DB)
}

func TestRedisConfigURLWins(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.URL = "redis://:hunter2@cache.internal:6390/2"

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6390", opts.Addr)
	assert.Equal(t, "hunter2", opts.Password)
	assert.Equal(t, 2, opts.DB)

	cfg.URL = "http://not-redis"
	_, err = cfg.Options()
	assert.Error(t, err)

	_, err = NewRedisBridge(cfg, &mockBroadcastTarget{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRedisBridgeUnavailableBeforeStart(t *testing.T) {
	rb := newTestBridge(t, &mockBroadcastTarget{})

	assert.False(t, rb.Available())
	assert.Equal(t, "taskboard:realtime:events", rb.channel)
	assert.ErrorIs(t, rb.Publish(sampleEvent()), ErrUnavailable)
}

func TestRedisBridgeInstanceIDUnique(t *testing.T) {
	target := &mockBroadcastTarget{}
	assert.NotEqual(t, newTestBridge(t, target).instanceID, newTestBridge(t, target).instanceID)
}

func TestConsumeSurvivesReceiveError(t *testing.T) {
	target := &mockBroadcastTarget{}
	rb := newTestBridge(t, target)
	rb.active.Store(true)

	foreign, err := encodeEnvelope("other-node", sampleEvent())
	require.NoError(t, err)
	sub := &scriptedReceiver{results: []receiveResult{
		{err: errors.New("read tcp: connection reset by peer")},
		{msg: &redis.Message{Channel: rb.channel, Payload: string(foreign)}},
	}}

	rb.wg.Add(1)
	go rb.consume(sub)

	require.Eventually(t, func() bool { return target.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, rb.Available())

	require.NoError(t, rb.Stop())
	assert.False(t, rb.Available())
}
