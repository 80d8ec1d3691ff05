package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// ErrUnavailable is returned by Publish before Start succeeds or after Stop.
var ErrUnavailable = errors.New("redis bridge unavailable")

const (
	publishTimeout = 2 * time.Second
	retryMin       = 100 * time.Millisecond
	retryMax       = 5 * time.Second
)

// redisEnvelope wraps an event with the originating instance ID
// so that a node can skip its own published events.
type redisEnvelope struct {
	InstanceID string      `json:"instance_id"`
	Event      types.Event `json:"event"`
}

// RedisBridge relays published events between server instances via Redis pub/sub.
type RedisBridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	hub        BroadcastTarget
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    *redis.PubSub
	active atomic.Bool
}

// NewRedisBridge creates a bridge that uses Redis pub/sub for cross-instance fan-out.
// No connection is made until Start.
func NewRedisBridge(cfg *RedisConfig, hub BroadcastTarget, logger zerolog.Logger) (*RedisBridge, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBridge{
		client:     redis.NewClient(opts),
		channel:    cfg.Channel(),
		instanceID: uuid.New().String(),
		hub:        hub,
		logger:     logger.With().Str("component", "redis-bridge").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start pings Redis and waits for the subscription to be confirmed.
func (b *RedisBridge) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	sub := b.client.Subscribe(b.ctx, b.channel)
	if _, err := sub.Receive(b.ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.sub = sub
	b.active.Store(true)

	b.wg.Add(1)
	go b.consume(sub)

	b.logger.Info().
		Str("instance_id", b.instanceID).
		Str("channel", b.channel).
		Msg("redis bridge started")
	return nil
}

// Publish sends an already stamped event to all other instances.
func (b *RedisBridge) Publish(evt types.Event) error {
	if !b.Available() {
		return ErrUnavailable
	}
	data, err := encodeEnvelope(b.instanceID, evt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(b.ctx, publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

// Stop ends the subscription and closes the client. Publish fails with
// ErrUnavailable afterwards.
func (b *RedisBridge) Stop() error {
	b.active.Store(false)
	b.cancel()
	if b.sub != nil {
		_ = b.sub.Close()
	}
	b.wg.Wait()
	return b.client.Close()
}

// Available reports whether the bridge is relaying.
func (b *RedisBridge) Available() bool {
	return b.active.Load()
}

// messageReceiver is the part of *redis.PubSub the relay loop reads from.
type messageReceiver interface {
	ReceiveMessage(ctx context.Context) (*redis.Message, error)
}

// consume relays messages until Stop. Receive errors are retried with a
// growing pause; go-redis resubscribes on the next receive.
func (b *RedisBridge) consume(sub messageReceiver) {
	defer b.wg.Done()

	pause := retryMin
	for {
		msg, err := sub.ReceiveMessage(b.ctx)
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Warn().Err(err).Dur("retry_in", pause).Msg("redis receive failed")
			select {
			case <-time.After(pause):
			case <-b.ctx.Done():
				return
			}
			pause = min(pause*2, retryMax)
			continue
		}
		pause = retryMin
		b.relay([]byte(msg.Payload))
	}
}

func (b *RedisBridge) relay(payload []byte) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		b.logger.Warn().Err(err).Msg("dropping undecodable redis event")
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}

	b.logger.Debug().
		Str("origin", env.InstanceID).
		Str("type", string(env.Event.Type)).
		Str("organization_id", env.Event.OrganizationID).
		Msg("relaying event from redis")

	b.hub.BroadcastToLocal(env.Event)
}

func encodeEnvelope(instanceID string, evt types.Event) ([]byte, error) {
	data, err := json.Marshal(redisEnvelope{InstanceID: instanceID, Event: evt})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (redisEnvelope, error) {
	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.Event.Validate(); err != nil {
		return env, err
	}
	return env, nil
}
