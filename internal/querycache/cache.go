// Package querycache is the process-wide cache of query results keyed by
// logical query name. Pages read through it and other components drop stale
// entries with Invalidate so the next read refetches.
package querycache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shindakun/btweet/internal/metrics"
)

// AuthUserQuery is the query holding the signed-in user of a browser client
const AuthUserQuery = "authUser"

const publishTimeout = 2 * time.Second

// Key identifies one cached query result. Scope is the browser client the
// entry belongs to; one server process caches many clients.
type Key struct {
	Query string
	Scope string
}

// AuthUser returns the authUser key for a browser client
func AuthUser(scope string) Key {
	return Key{Query: AuthUserQuery, Scope: scope}
}

func (k Key) String() string {
	return k.Query + "/" + k.Scope
}

func parseKey(s string) (Key, error) {
	query, scope, ok := strings.Cut(s, "/")
	if !ok || query == "" {
		return Key{}, fmt.Errorf("malformed cache key %q", s)
	}
	return Key{Query: query, Scope: scope}, nil
}

// Invalidator discards a cached query so dependent readers refetch
type Invalidator interface {
	Invalidate(key Key)
}

// Publisher forwards local invalidations to other processes
type Publisher interface {
	Publish(ctx context.Context, key Key) error
}

// Cache is an LRU of query results with per-entry expiry.
// Concurrent misses on the same key share one fetch.
type Cache struct {
	entries *expirable.LRU[string, any]
	group   singleflight.Group

	mu  sync.Mutex
	gen uint64 // bumped by every invalidation

	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithPublisher broadcasts every local invalidation through p
func WithPublisher(p Publisher) Option {
	return func(c *Cache) { c.publisher = p }
}

// WithMetrics records hits, misses and invalidations
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache holding at most size entries for ttl each (0 = no expiry)
func New(size int, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries: expirable.NewLRU[string, any](size, nil, ttl),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the cached value for key, calling fn on a miss.
// A result whose fetch started before an invalidation is returned but not stored.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	k := key.String()
	if v, ok := c.entries.Get(k); ok {
		if typed, ok := v.(T); ok {
			c.metrics.CacheLookup(key.Query, true)
			return typed, nil
		}
	}
	c.metrics.CacheLookup(key.Query, false)

	start := c.generation()
	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.store(k, val, start)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Contains reports whether key currently has a cached value
func (c *Cache) Contains(key Key) bool {
	return c.entries.Contains(key.String())
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Invalidate drops key locally and forwards the invalidation to other processes
func (c *Cache) Invalidate(key Key) {
	c.drop(key)
	c.metrics.CacheInvalidated(key.Query, "local")
	c.logger.Debug("query invalidated", zap.String("query", key.Query))

	if c.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(ctx, key); err != nil {
		c.logger.Warn("failed to publish invalidation", zap.String("query", key.Query), zap.Error(err))
	}
}

// invalidateRemote drops key after another process invalidated it
func (c *Cache) invalidateRemote(key Key) {
	c.drop(key)
	c.metrics.CacheInvalidated(key.Query, "remote")
}

func (c *Cache) drop(key Key) {
	k := key.String()
	c.mu.Lock()
	c.gen++
	c.entries.Remove(k)
	c.mu.Unlock()
	c.group.Forget(k)
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Cache) store(k string, val any, start uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != start {
		return
	}
	c.entries.Add(k, val)
}
