package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/addrindex/internal/core/domain"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("ADDRINDEX_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping redis test. Set ADDRINDEX_TEST_REDIS_URL to run.")
	}
	c, err := NewClient(Config{URL: url, KeyPrefix: "addrindex_test_" + uuid.NewString()})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLock_Exclusive(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	first, err := c.AcquireLock(ctx, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.AcquireLock(ctx, 5*time.Second); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	if err := first.Refresh(ctx); err != nil {
		t.Errorf("refresh: %v", err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := first.Refresh(ctx); !errors.Is(err, ErrLockLost) {
		t.Errorf("expected ErrLockLost after release, got %v", err)
	}

	second, err := c.AcquireLock(ctx, 5*time.Second)
	if err != nil {
		t.Fatalf("expected lock to be free, got %v", err)
	}
	_ = second.Release(ctx)
}

func TestLock_ReleaseDoesNotStealOthers(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	owner, err := c.AcquireLock(ctx, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer owner.Release(ctx)

	stale := &Lock{client: c, key: c.lockKey(), token: "stale", ttl: time.Second}
	_ = stale.Release(ctx)

	if err := owner.Refresh(ctx); err != nil {
		t.Errorf("owner lost the lock to a stale release: %v", err)
	}
}

func TestProgress(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	p, err := c.GetProgress(ctx)
	if err != nil || p.Running {
		t.Fatalf("expected empty progress, got %+v %v", p, err)
	}

	want := domain.Progress{Running: true, Processed: 5, Total: 10, Percent: 50, Current: 104}
	if err := c.SetProgress(ctx, want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.GetProgress(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}
