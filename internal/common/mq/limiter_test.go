package mq_test

import (
	"context"
	"testing"
	"time"

	"arbiter/internal/common/mq"
)

func TestTokenLimiterBoundsInFlight(t *testing.T) {
	t.Parallel()
	limiter := mq.NewTokenLimiter(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(blocked); err == nil {
		t.Fatal("acquire beyond capacity must block until canceled")
	}

	limiter.Release()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestTokenLimiterAcquireReturnsOnCancel(t *testing.T) {
	t.Parallel()
	limiter := mq.NewTokenLimiter(1)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- limiter.Acquire(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected the canceled acquire to fail")
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after cancel")
	}
}

func TestTokenLimiterExtraReleaseIsNoOp(t *testing.T) {
	t.Parallel()
	limiter := mq.NewTokenLimiter(1)
	limiter.Release()
	limiter.Release()

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(blocked); err == nil {
		t.Fatal("capacity must not grow past the configured size")
	}
}

func TestTokenLimiterMinimumCapacity(t *testing.T) {
	t.Parallel()
	limiter := mq.NewTokenLimiter(0)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("a zero-size limiter must still hand out one token: %v", err)
	}
}
