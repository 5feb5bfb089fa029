package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hitoshi/oneshot/internal/ephemeral"
)

func newTestLock(t *testing.T, ttl time.Duration) (*CooldownLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := ephemeral.NewRedisStore("redis://"+mr.Addr(), time.Second)
	if err != nil {
		t.Fatalf("NewRedisStore returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewCooldownLock(store, ttl), mr
}

func TestCooldownLock_FirstAcquireSucceeds(t *testing.T) {
	lock, mr := newTestLock(t, 5*time.Second)

	if err := lock.Acquire(context.Background(), "user-1"); err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if !mr.Exists("cooldown:user:user-1") {
		t.Error("expected cooldown key to be set")
	}
	if got, _ := mr.Get("cooldown:user:user-1"); got != "locked" {
		t.Errorf("cooldown value = %q, want %q", got, "locked")
	}
}

func TestCooldownLock_SecondAcquireWithinTTL_ReturnsCooldownError(t *testing.T) {
	lock, mr := newTestLock(t, 5*time.Second)
	ctx := context.Background()

	if err := lock.Acquire(ctx, "user-1"); err != nil {
		t.Fatalf("first Acquire returned error: %v", err)
	}
	mr.FastForward(1500 * time.Millisecond)

	err := lock.Acquire(ctx, "user-1")
	var cdErr *CooldownError
	if !errors.As(err, &cdErr) {
		t.Fatalf("err = %v, want *CooldownError", err)
	}
	if cdErr.RetryAfter < 1 || cdErr.RetryAfter > 5 {
		t.Errorf("RetryAfter = %d, want in [1, 5]", cdErr.RetryAfter)
	}
	// 残り3.5秒は切り上げて4秒
	if cdErr.RetryAfter != 4 {
		t.Errorf("RetryAfter = %d, want 4", cdErr.RetryAfter)
	}
}

func TestCooldownLock_AcquireAfterTTL_Succeeds(t *testing.T) {
	lock, mr := newTestLock(t, 5*time.Second)
	ctx := context.Background()

	if err := lock.Acquire(ctx, "user-1"); err != nil {
		t.Fatalf("first Acquire returned error: %v", err)
	}
	mr.FastForward(5 * time.Second)

	if err := lock.Acquire(ctx, "user-1"); err != nil {
		t.Fatalf("Acquire after TTL returned error: %v", err)
	}
}

func TestCooldownLock_UsersAreIndependent(t *testing.T) {
	lock, _ := newTestLock(t, 5*time.Second)
	ctx := context.Background()

	if err := lock.Acquire(ctx, "user-1"); err != nil {
		t.Fatalf("Acquire user-1 returned error: %v", err)
	}
	if err := lock.Acquire(ctx, "user-2"); err != nil {
		t.Fatalf("Acquire user-2 returned error: %v", err)
	}
}

// failingStore はSetIfAbsentとTTLの結果を差し替えるStore。
type failingStore struct {
	ephemeral.Store
	setIfAbsentOK bool
	ttlErr        bool
}

func (f *failingStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if f.setIfAbsentOK {
		return false, nil
	}
	return false, ephemeral.ErrUnavailable
}

func (f *failingStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if f.ttlErr {
		return 0, ephemeral.ErrUnavailable
	}
	return -2, nil
}

func TestCooldownLock_StoreFailure_IsNotCooldownError(t *testing.T) {
	lock := NewCooldownLock(&failingStore{}, 5*time.Second)

	err := lock.Acquire(context.Background(), "user-1")
	if !errors.Is(err, ephemeral.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	var cdErr *CooldownError
	if errors.As(err, &cdErr) {
		t.Error("store failure must not be reported as cooldown")
	}
}

func TestCooldownLock_TTLReadFailure_IsUnavailable(t *testing.T) {
	lock := NewCooldownLock(&failingStore{setIfAbsentOK: true, ttlErr: true}, 5*time.Second)

	err := lock.Acquire(context.Background(), "user-1")
	if !errors.Is(err, ephemeral.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCooldownLock_KeyVanishedBeforeTTLRead_RetryAfterOne(t *testing.T) {
	lock := NewCooldownLock(&failingStore{setIfAbsentOK: true}, 5*time.Second)

	err := lock.Acquire(context.Background(), "user-1")
	var cdErr *CooldownError
	if !errors.As(err, &cdErr) {
		t.Fatalf("err = %v, want *CooldownError", err)
	}
	if cdErr.RetryAfter != 1 {
		t.Errorf("RetryAfter = %d, want 1", cdErr.RetryAfter)
	}
}

func TestCooldownLock_RetryAfterSeconds_Clamps(t *testing.T) {
	lock := NewCooldownLock(nil, 5*time.Second)

	tests := []struct {
		remaining time.Duration
		want      int
	}{
		{-1, 1},
		{0, 1},
		{1 * time.Millisecond, 1},
		{4001 * time.Millisecond, 5},
		{5 * time.Second, 5},
		{time.Minute, 5},
	}
	for _, tt := range tests {
		if got := lock.retryAfterSeconds(tt.remaining); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.remaining, got, tt.want)
		}
	}
}
