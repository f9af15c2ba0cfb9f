package cache_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"arbiter/internal/common/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, cache.Cache) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("create cache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return server, c
}

func identity(s string) string { return s }

func parse(s string) (string, error) { return s, nil }

func TestGetWithCachedFetchesOnceThenServesCache(t *testing.T) {
	t.Parallel()
	_, c := newTestCache(t)

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "value-" + strconv.Itoa(calls), nil
	}
	for i := 0; i < 3; i++ {
		got, err := cache.GetWithCached(
			context.Background(), c, "k", time.Minute, time.Second,
			func(s string) bool { return s == "" },
			identity, parse, fetch,
		)
		if err != nil {
			t.Fatalf("get with cached failed: %v", err)
		}
		if got != "value-1" {
			t.Fatalf("got %q, want the first fetched value", got)
		}
	}
	if calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls)
	}
}

func TestGetWithCachedCachesAbsence(t *testing.T) {
	t.Parallel()
	server, c := newTestCache(t)

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "", nil
	}
	for i := 0; i < 2; i++ {
		got, err := cache.GetWithCached(
			context.Background(), c, "missing", time.Minute, time.Second,
			func(s string) bool { return s == "" },
			identity, parse, fetch,
		)
		if err != nil {
			t.Fatalf("get with cached failed: %v", err)
		}
		if got != "" {
			t.Fatalf("got %q, want empty", got)
		}
	}
	if calls != 1 {
		t.Fatalf("fetch calls = %d, null sentinel must absorb the second read", calls)
	}
	if stored, _ := server.Get("missing"); stored != cache.NullCacheValue {
		t.Fatalf("stored = %q, want the null sentinel", stored)
	}
}

func TestGetWithCachedPropagatesFetchError(t *testing.T) {
	t.Parallel()
	_, c := newTestCache(t)

	wantErr := errors.New("source down")
	_, err := cache.GetWithCached(
		context.Background(), c, "k", time.Minute, time.Second,
		func(s string) bool { return s == "" },
		identity, parse,
		func(ctx context.Context) (string, error) { return "", wantErr },
	)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want the fetch error", err)
	}
}

func TestUpdateCachedInvalidates(t *testing.T) {
	t.Parallel()
	server, c := newTestCache(t)
	if err := c.Set(context.Background(), "k", "stale", time.Minute); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	err := cache.UpdateCached(context.Background(), c, "k", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("update cached failed: %v", err)
	}
	if server.Exists("k") {
		t.Fatal("cache entry must be invalidated after update")
	}
}

func TestJitterTTLStaysWithinTenPercent(t *testing.T) {
	t.Parallel()
	ttl := 10 * time.Minute
	for i := 0; i < 100; i++ {
		got := cache.JitterTTL(ttl)
		if got > ttl || got < ttl-ttl/10 {
			t.Fatalf("jittered ttl %v out of range", got)
		}
	}
	if got := cache.JitterTTL(0); got != 0 {
		t.Fatalf("zero ttl must pass through, got %v", got)
	}
}
