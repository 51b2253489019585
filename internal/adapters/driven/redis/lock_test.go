package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/credgate/internal/core/domain"
)

func TestLock_TokensDiffer(t *testing.T) {
	client, _ := setupTestRedis(t)

	if NewLock(client).token == NewLock(client).token {
		t.Error("expected unique lock tokens")
	}
}

func TestLock_AcquireRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	first := NewLock(client)
	second := NewLock(client)

	steps := []struct {
		name string
		lock *Lock
		op   string
		want bool
	}{
		{"first acquires", first, "acquire", true},
		{"second blocked", second, "acquire", false},
		{"not reentrant", first, "acquire", false},
		{"foreign release ignored", second, "release", false},
		{"still blocked", second, "acquire", false},
		{"owner releases", first, "release", false},
		{"second acquires", second, "acquire", true},
	}

	for _, step := range steps {
		switch step.op {
		case "acquire":
			got, err := step.lock.Acquire(ctx, "migrate", 10*time.Second)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", step.name, err)
			}
			if got != step.want {
				t.Fatalf("%s: acquired = %v, want %v", step.name, got, step.want)
			}
		case "release":
			if err := step.lock.Release(ctx, "migrate"); err != nil {
				t.Fatalf("%s: unexpected error: %v", step.name, err)
			}
		}
	}
}

func TestLock_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	holder := NewLock(client)
	waiter := NewLock(client)

	if ok, _ := holder.Acquire(ctx, "migrate", time.Second); !ok {
		t.Fatal("expected to acquire lock")
	}
	mr.FastForward(2 * time.Second)

	ok, err := waiter.Acquire(ctx, "migrate", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected expired lock to be acquirable")
	}
}

func TestLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	holder := NewLock(client)
	other := NewLock(client)

	if ok, _ := holder.Acquire(ctx, "migrate", time.Second); !ok {
		t.Fatal("expected to acquire lock")
	}
	if err := holder.Extend(ctx, "migrate", time.Minute); err != nil {
		t.Fatalf("unexpected extend error: %v", err)
	}
	if ttl := mr.TTL(lockKey("migrate")); ttl != time.Minute {
		t.Errorf("expected ttl of 1m after extend, got %v", ttl)
	}

	if err := other.Extend(ctx, "migrate", time.Minute); !errors.Is(err, domain.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld for non-holder, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := holder.Extend(ctx, "migrate", time.Minute); !errors.Is(err, domain.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld after expiry, got %v", err)
	}
}

func TestLock_Ping(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewLock(client)

	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}

	mr.Close()
	if err := lock.Ping(context.Background()); err == nil {
		t.Error("expected ping error after server shutdown")
	}
}
