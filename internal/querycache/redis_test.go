package querycache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisBusPropagatesInvalidation(t *testing.T) {
	client := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const channel = "btweet:test:invalidate"
	busA := NewRedisBus(client, channel, nil)
	busB := NewRedisBus(client, channel, nil)

	cacheA := New(16, 0, WithPublisher(busA))
	cacheB := New(16, 0, WithPublisher(busB))

	listener, err := busB.Subscribe(ctx, cacheB)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer listener.Close()
	go listener.Run(ctx)

	key := AuthUser("client-1")
	if _, err := Fetch(ctx, cacheB, key, func(context.Context) (string, error) { return "alice", nil }); err != nil {
		t.Fatal(err)
	}

	cacheA.Invalidate(key)

	deadline := time.Now().Add(2 * time.Second)
	for cacheB.Contains(key) {
		if time.Now().After(deadline) {
			t.Fatal("replica B never dropped the invalidated key")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListenerIgnoresOwnMessages(t *testing.T) {
	client := newTestRedis(t)
	bus := NewRedisBus(client, "btweet:test:self", nil)
	cache := New(16, 0)
	ctx := context.Background()

	key := AuthUser("client-1")
	if _, err := Fetch(ctx, cache, key, func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatal(err)
	}

	l := &Listener{bus: bus, cache: cache}
	l.handle(`{"origin":"` + bus.origin + `","key":"authUser/client-1"}`)
	if !cache.Contains(key) {
		t.Error("own invalidation should be ignored")
	}

	l.handle(`not json`)
	l.handle(`{"origin":"other","key":"nokey"}`)
	if !cache.Contains(key) {
		t.Error("malformed messages should be ignored")
	}

	l.handle(`{"origin":"other","key":"authUser/client-1"}`)
	if cache.Contains(key) {
		t.Error("remote invalidation should drop the key")
	}
}
