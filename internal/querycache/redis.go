package querycache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// invalidation is the pub/sub message exchanged between replicas
type invalidation struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// RedisBus shares invalidations between frontend replicas over a Redis channel
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	origin  string
	logger  *zap.Logger
}

// NewRedisBus creates a bus publishing on channel. Each bus has its own
// origin id so a replica ignores its own messages.
func NewRedisBus(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{
		client:  client,
		channel: channel,
		origin:  uuid.New().String(),
		logger:  logger,
	}
}

// Publish announces that key was invalidated here
func (b *RedisBus) Publish(ctx context.Context, key Key) error {
	payload, err := json.Marshal(invalidation{Origin: b.origin, Key: key.String()})
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Listener applies invalidations received from other replicas to a cache
type Listener struct {
	bus   *RedisBus
	cache *Cache
	sub   *redis.PubSub
}

// Subscribe joins the channel and returns once the subscription is confirmed
func (b *RedisBus) Subscribe(ctx context.Context, cache *Cache) (*Listener, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	return &Listener{bus: b, cache: cache, sub: sub}, nil
}

// Run drains the subscription until ctx is done or the subscription closes
func (l *Listener) Run(ctx context.Context) error {
	ch := l.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			l.handle(msg.Payload)
		}
	}
}

// Close ends the subscription
func (l *Listener) Close() error {
	return l.sub.Close()
}

func (l *Listener) handle(payload string) {
	var inv invalidation
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		l.bus.logger.Warn("dropping malformed invalidation", zap.Error(err))
		return
	}
	if inv.Origin == l.bus.origin {
		return
	}
	key, err := parseKey(inv.Key)
	if err != nil {
		l.bus.logger.Warn("dropping malformed invalidation", zap.Error(err))
		return
	}
	l.cache.invalidateRemote(key)
}
