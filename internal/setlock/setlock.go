// Package setlock implements the Set Lock fallback described in spec §4.3:
// it emulates atomic set mutations on top of a plain key-value Adapter by
// storing each set as a single value under its own key and serializing
// read-modify-write through a partitioned in-process lock table.
//
// Partitioning (rather than one lock per set key) keeps the lock table's
// size bounded while still letting unrelated sets mutate concurrently;
// the partition count scales with GOMAXPROCS the way the teacher's own
// sharded structures size themselves off runtime parallelism.
package setlock

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/goliatone/go-smkes/backend"
)

// Config tunes the partitioned lock table and its retry budget.
type Config struct {
	// PartitionMultiplier sets P = GOMAXPROCS * PartitionMultiplier.
	// Default 4 (spec §4.3).
	PartitionMultiplier int
	// RetryBudget is the number of acquisition attempts before giving up
	// with ErrLockTimeout. Default 100 (spec §4.3, §7).
	RetryBudget int
	// RetryBackoff is the delay between acquisition attempts. Default 1ms.
	RetryBackoff time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		PartitionMultiplier: 4,
		RetryBudget:         100,
		RetryBackoff:        1 * time.Millisecond,
	}
}

// ErrLockTimeout is returned when a partition cannot be acquired within
// the retry budget. Per spec §7 this is a fatal error for the operation
// and is never retried internally beyond the configured budget.
type ErrLockTimeout struct {
	SetKey string
}

func (e *ErrLockTimeout) Error() string {
	return fmt.Sprintf("setlock: lock timeout acquiring partition for set %q", e.SetKey)
}

// Store is the fallback set store. It owns no data itself; sets live as
// ordinary values in the wrapped Adapter, encoded as a member-id slice.
type Store struct {
	adapter    backend.Adapter
	cfg        Config
	partitions []sync.Mutex
}

// New wraps adapter with the Set Lock fallback using cfg.
func New(adapter backend.Adapter, cfg Config) *Store {
	if cfg.PartitionMultiplier <= 0 {
		cfg.PartitionMultiplier = 4
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 100
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	n := runtime.GOMAXPROCS(0) * cfg.PartitionMultiplier
	if n < 1 {
		n = cfg.PartitionMultiplier
	}
	return &Store{
		adapter:    adapter,
		cfg:        cfg,
		partitions: make([]sync.Mutex, n),
	}
}

func (s *Store) partitionFor(setKey string) *sync.Mutex {
	idx := xxhash.Sum64String(setKey) % uint64(len(s.partitions))
	return &s.partitions[idx]
}

// acquire spins up to the retry budget trying to take the partition lock,
// surfacing ErrLockTimeout only to guard against livelock; under normal
// load the mutex is uncontended or yields within a handful of attempts.
func (s *Store) acquire(ctx context.Context, setKey string, mu *sync.Mutex) error {
	for attempt := 0; attempt < s.cfg.RetryBudget; attempt++ {
		if mu.TryLock() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryBackoff):
		}
	}
	return &ErrLockTimeout{SetKey: setKey}
}

func decodeSet(value any) map[uint64]struct{} {
	switch v := value.(type) {
	case map[uint64]struct{}:
		return v
	case []uint64:
		set := make(map[uint64]struct{}, len(v))
		for _, id := range v {
			set[id] = struct{}{}
		}
		return set
	default:
		return map[uint64]struct{}{}
	}
}

func encodeSet(set map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Sadd inserts member into the set at setKey. Idempotent on duplicates.
func (s *Store) Sadd(ctx context.Context, setKey string, member uint64) error {
	mu := s.partitionFor(setKey)
	if err := s.acquire(ctx, setKey, mu); err != nil {
		return err
	}
	defer mu.Unlock()

	current, ok, err := s.adapter.Get(ctx, setKey)
	if err != nil {
		return err
	}
	var set map[uint64]struct{}
	if ok {
		set = decodeSet(current)
	} else {
		set = map[uint64]struct{}{}
	}
	set[member] = struct{}{}
	return s.adapter.Put(ctx, setKey, encodeSet(set), 0)
}

// Srem removes member from the set at setKey. Removing the last member
// deletes the backing key, which is equivalent to writing back an empty
// value as far as Smembers is concerned.
func (s *Store) Srem(ctx context.Context, setKey string, member uint64) error {
	mu := s.partitionFor(setKey)
	if err := s.acquire(ctx, setKey, mu); err != nil {
		return err
	}
	defer mu.Unlock()

	current, ok, err := s.adapter.Get(ctx, setKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	set := decodeSet(current)
	delete(set, member)
	if len(set) == 0 {
		return s.adapter.Delete(ctx, setKey)
	}
	return s.adapter.Put(ctx, setKey, encodeSet(set), 0)
}

// Smembers reads the set at setKey without holding the partition: reads
// don't need serialization against other reads, only against writers of
// the same key, and the adapter's own Get is assumed atomic per key.
func (s *Store) Smembers(ctx context.Context, setKey string) ([]uint64, bool, error) {
	current, ok, err := s.adapter.Get(ctx, setKey)
	if err != nil || !ok {
		return nil, false, err
	}
	set := decodeSet(current)
	if len(set) == 0 {
		return nil, false, nil
	}
	return encodeSet(set), true, nil
}
