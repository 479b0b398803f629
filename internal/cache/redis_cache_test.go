package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisReplayCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisReplayCache(rdb, ttl), mr
}

func TestRedisReplayCache_FirstSeenThenReplay(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	seen, err := c.Seen(ctx, "SM1", "delivered")
	if err != nil {
		t.Fatalf("Seen() error: %v", err)
	}
	if seen {
		t.Fatal("first callback reported as replay")
	}

	seen, err = c.Seen(ctx, "SM1", "delivered")
	if err != nil {
		t.Fatalf("Seen() error: %v", err)
	}
	if !seen {
		t.Fatal("expected replay to be detected")
	}

	k := "twilio:cb:SM1:delivered"
	if !mr.Exists(k) {
		t.Fatalf("expected key %q to exist", k)
	}
	if ttl := mr.TTL(k); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}
}

func TestRedisReplayCache_DistinctStatusesAreIndependent(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	for _, st := range []string{"sent", "delivered", "read"} {
		seen, err := c.Seen(ctx, "SM2", st)
		if err != nil {
			t.Fatalf("Seen(%s) error: %v", st, err)
		}
		if seen {
			t.Fatalf("status %s wrongly reported as replay", st)
		}
	}
}

func TestRedisReplayCache_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	if _, err := c.Seen(ctx, "SM3", "sent"); err != nil {
		t.Fatalf("Seen() error: %v", err)
	}
	mr.FastForward(2 * time.Second)

	seen, err := c.Seen(ctx, "SM3", "sent")
	if err != nil {
		t.Fatalf("Seen() error: %v", err)
	}
	if seen {
		t.Fatal("expected key to have expired")
	}
}

func TestRedisReplayCache_ForgetAllowsReprocessing(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, err := c.Seen(ctx, "SM5", "failed"); err != nil {
		t.Fatalf("Seen() error: %v", err)
	}
	if err := c.Forget(ctx, "SM5", "failed"); err != nil {
		t.Fatalf("Forget() error: %v", err)
	}
	if mr.Exists("twilio:cb:SM5:failed") {
		t.Fatal("expected key to be removed")
	}
	seen, err := c.Seen(ctx, "SM5", "failed")
	if err != nil {
		t.Fatalf("Seen() error: %v", err)
	}
	if seen {
		t.Fatal("forgotten callback reported as replay")
	}
}

func TestRedisReplayCache_ServerDown(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	if _, err := c.Seen(context.Background(), "SM4", "sent"); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}
