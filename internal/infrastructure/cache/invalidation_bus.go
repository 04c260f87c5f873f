package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultInvalidationChannel is the Pub/Sub channel used when none is configured
const DefaultInvalidationChannel = "tenantaccess:cache:invalidate"

const defaultCloseTimeout = 5 * time.Second

// ErrBusRunning is returned when Run is called on a bus that is already subscribed
var ErrBusRunning = errors.New("cache: invalidation subscription already running")

// InvalidationMessage is the payload published for every invalidation
type InvalidationMessage struct {
	Origin    string `json:"origin"`
	Keys      []Key  `json:"keys"`
	Timestamp int64  `json:"ts"`
}

// Invalidator marks cached entries stale by key prefix
type Invalidator interface {
	Invalidate(prefix Key) int
}

// RedisInvalidationBus fans cache invalidations out to every service instance
// over Redis Pub/Sub. Messages published by the same instance are ignored on
// receipt because the publisher has already invalidated its local cache.
type RedisInvalidationBus struct {
	client   redis.UniversalClient
	channel  string
	instance string
	logger   *zap.Logger

	mu       sync.Mutex
	running  bool
	cancelFn context.CancelFunc
	doneCh   chan struct{}
}

// BusOption configures a RedisInvalidationBus
type BusOption func(*RedisInvalidationBus)

// WithChannel sets the Pub/Sub channel name
func WithChannel(channel string) BusOption {
	return func(b *RedisInvalidationBus) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithBusLogger sets the logger for the bus
func WithBusLogger(logger *zap.Logger) BusOption {
	return func(b *RedisInvalidationBus) {
		b.logger = logger
	}
}

// NewRedisInvalidationBus creates a bus on an existing client.
// The caller keeps ownership of the client.
func NewRedisInvalidationBus(client redis.UniversalClient, opts ...BusOption) *RedisInvalidationBus {
	b := &RedisInvalidationBus{
		client:   client,
		channel:  DefaultInvalidationChannel,
		instance: uuid.NewString(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Instance returns the id stamped on messages published by this bus
func (b *RedisInvalidationBus) Instance() string {
	return b.instance
}

// Publish announces that entries under the given key prefixes are stale
func (b *RedisInvalidationBus) Publish(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	data, err := json.Marshal(InvalidationMessage{
		Origin:    b.instance,
		Keys:      keys,
		Timestamp: time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	b.logger.Debug("Published cache invalidation",
		zap.String("channel", b.channel),
		zap.Int("keys", len(keys)))
	return nil
}

// Run subscribes to the channel and applies invalidations from other
// instances to target. It blocks until ctx is cancelled or Close is called.
func (b *RedisInvalidationBus) Run(ctx context.Context, target Invalidator) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrBusRunning
	}
	subCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cancelFn = cancel
	b.doneCh = make(chan struct{})
	done := b.doneCh
	b.mu.Unlock()

	defer func() {
		cancel()
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		close(done)
	}()

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("Subscribed to cache invalidation channel", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("Cache invalidation channel closed")
				return nil
			}
			b.handle(msg.Payload, target)
		}
	}
}

func (b *RedisInvalidationBus) handle(payload string, target Invalidator) {
	var msg InvalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.Error("Failed to unmarshal invalidation message",
			zap.String("payload", payload),
			zap.Error(err))
		return
	}
	if msg.Origin == b.instance {
		return
	}
	for _, key := range msg.Keys {
		target.Invalidate(key)
	}
	b.logger.Debug("Applied remote cache invalidation",
		zap.String("origin", msg.Origin),
		zap.Int("keys", len(msg.Keys)))
}

// Close stops a running subscription and waits for it to finish
func (b *RedisInvalidationBus) Close() error {
	b.mu.Lock()
	cancel, done := b.cancelFn, b.doneCh
	b.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-time.After(defaultCloseTimeout):
		b.logger.Warn("Timeout waiting for invalidation subscription to stop")
	}
	return nil
}
