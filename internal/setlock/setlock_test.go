package setlock_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-smkes/backend/memorykv"
	"github.com/goliatone/go-smkes/internal/setlock"
)

func TestSaddSremRoundTrip(t *testing.T) {
	s := setlock.New(memorykv.New(), setlock.DefaultConfig())
	ctx := context.Background()

	if err := s.Sadd(ctx, "s", 1); err != nil {
		t.Fatalf("Sadd: %v", err)
	}
	if err := s.Sadd(ctx, "s", 2); err != nil {
		t.Fatalf("Sadd: %v", err)
	}

	members, ok, err := s.Smembers(ctx, "s")
	if err != nil || !ok {
		t.Fatalf("Smembers = (%v, %v, %v)", members, ok, err)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	if len(members) != 2 || members[0] != 1 || members[1] != 2 {
		t.Fatalf("Smembers = %v, want [1 2]", members)
	}

	if err := s.Srem(ctx, "s", 1); err != nil {
		t.Fatalf("Srem: %v", err)
	}
	members, ok, err = s.Smembers(ctx, "s")
	if err != nil || !ok || len(members) != 1 || members[0] != 2 {
		t.Fatalf("Smembers after Srem = (%v, %v, %v), want ([2], true, nil)", members, ok, err)
	}
}

func TestSremEmptyingSetDeletesBackingKey(t *testing.T) {
	backend := memorykv.New()
	s := setlock.New(backend, setlock.DefaultConfig())
	ctx := context.Background()

	_ = s.Sadd(ctx, "s", 1)
	_ = s.Srem(ctx, "s", 1)

	_, ok, err := backend.Get(ctx, "s")
	if err != nil || ok {
		t.Fatalf("backing key still present after emptying set")
	}
}

func TestSaddIsIdempotent(t *testing.T) {
	s := setlock.New(memorykv.New(), setlock.DefaultConfig())
	ctx := context.Background()

	_ = s.Sadd(ctx, "s", 1)
	_ = s.Sadd(ctx, "s", 1)

	members, _, _ := s.Smembers(ctx, "s")
	if len(members) != 1 {
		t.Fatalf("Smembers = %v, want exactly one member", members)
	}
}

func TestSmembersOnAbsentSet(t *testing.T) {
	s := setlock.New(memorykv.New(), setlock.DefaultConfig())
	members, ok, err := s.Smembers(context.Background(), "never-added")
	if err != nil || ok || members != nil {
		t.Fatalf("Smembers(absent) = (%v, %v, %v), want (nil, false, nil)", members, ok, err)
	}
}

func TestConcurrentSaddConverges(t *testing.T) {
	s := setlock.New(memorykv.New(), setlock.DefaultConfig())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Sadd(ctx, "shared", uint64(i))
		}(i)
	}
	wg.Wait()

	members, ok, err := s.Smembers(ctx, "shared")
	if err != nil || !ok {
		t.Fatalf("Smembers: (%v, %v, %v)", members, ok, err)
	}
	if len(members) != n {
		t.Fatalf("Smembers returned %d members, want %d", len(members), n)
	}
}

// blockingAdapter delays every Get until block is closed, letting a test
// hold a partition's mutex open for as long as it needs.
type blockingAdapter struct {
	inner *memorykv.Backend
	block chan struct{}
}

func (a *blockingAdapter) Get(ctx context.Context, key string) (any, bool, error) {
	<-a.block
	return a.inner.Get(ctx, key)
}
func (a *blockingAdapter) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	return a.inner.Put(ctx, key, value, ttl)
}
func (a *blockingAdapter) Delete(ctx context.Context, key string) error {
	return a.inner.Delete(ctx, key)
}

func TestSaddTimesOutWhenPartitionHeld(t *testing.T) {
	adapter := &blockingAdapter{inner: memorykv.New(), block: make(chan struct{})}
	cfg := setlock.Config{PartitionMultiplier: 1, RetryBudget: 3, RetryBackoff: time.Millisecond}
	s := setlock.New(adapter, cfg)
	ctx := context.Background()

	holderStarted := make(chan struct{})
	go func() {
		close(holderStarted)
		_ = s.Sadd(ctx, "contended", 1)
	}()
	<-holderStarted
	time.Sleep(20 * time.Millisecond) // let the holder acquire its partition mutex before it blocks in Get

	err := s.Sadd(ctx, "contended", 2)
	close(adapter.block)

	var timeoutErr *setlock.ErrLockTimeout
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Sadd on contended partition = %v, want *ErrLockTimeout", err)
	}
}
