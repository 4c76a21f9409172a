// Package memorykv implements the conformance backend required by spec §6:
// a minimal in-process two-table store — one keyed map for values, one
// multi-valued map for sets — that supplies every optional capability
// natively and ignores TTL entirely.
package memorykv

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-smkes/backend"
)

var (
	_ backend.Adapter          = (*Backend)(nil)
	_ backend.SetAdder         = (*Backend)(nil)
	_ backend.SetRemover       = (*Backend)(nil)
	_ backend.SetMembersReader = (*Backend)(nil)
	_ backend.MultiGetter      = (*Backend)(nil)
)

// Backend is the in-process conformance adapter. The zero value is not
// usable; construct one with New.
type Backend struct {
	values *xsync.MapOf[string, any]
	sets   *xsync.MapOf[string, *setEntry]
}

type setEntry struct {
	mu      sync.Mutex
	members map[uint64]struct{}
}

// New constructs an empty in-process backend.
func New() *Backend {
	return &Backend{
		values: xsync.NewMapOf[string, any](),
		sets:   xsync.NewMapOf[string, *setEntry](),
	}
}

// Get implements backend.Adapter. TTL is not tracked, so a value put with
// any ttl never expires on its own; eviction only ever happens through
// Delete.
func (b *Backend) Get(_ context.Context, key string) (any, bool, error) {
	v, ok := b.values.Load(key)
	return v, ok, nil
}

// Put implements backend.Adapter. ttl is accepted and ignored, per spec §6.
func (b *Backend) Put(_ context.Context, key string, value any, _ time.Duration) error {
	b.values.Store(key, value)
	return nil
}

// Delete implements backend.Adapter.
func (b *Backend) Delete(_ context.Context, key string) error {
	b.values.Delete(key)
	return nil
}

// MultiGet implements backend.MultiGetter with sequential individual
// reads, matching the fallback sequential-read contract from spec §4.3
// even though this backend could read in any order.
func (b *Backend) MultiGet(ctx context.Context, keys []string) ([]backend.MultiGetResult, error) {
	out := make([]backend.MultiGetResult, len(keys))
	for i, k := range keys {
		v, ok, err := b.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = backend.MultiGetResult{Value: v, OK: ok}
	}
	return out, nil
}

func (b *Backend) entry(setKey string) *setEntry {
	e, _ := b.sets.LoadOrCompute(setKey, func() *setEntry {
		return &setEntry{members: make(map[uint64]struct{})}
	})
	return e
}

// SetAdd implements backend.SetAdder natively; a real in-process mutex
// per set key, not the partitioned fallback, since this backend owns the
// set storage directly.
func (b *Backend) SetAdd(_ context.Context, setKey string, member uint64) error {
	e := b.entry(setKey)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.members[member] = struct{}{}
	return nil
}

// SetRemove implements backend.SetRemover natively.
func (b *Backend) SetRemove(_ context.Context, setKey string, member uint64) error {
	e, ok := b.sets.Load(setKey)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.members, member)
	if len(e.members) == 0 {
		b.sets.Delete(setKey)
	}
	return nil
}

// SetMembers implements backend.SetMembersReader natively.
func (b *Backend) SetMembers(_ context.Context, setKey string) ([]uint64, bool, error) {
	e, ok := b.sets.Load(setKey)
	if !ok {
		return nil, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.members) == 0 {
		return nil, false, nil
	}
	out := make([]uint64, 0, len(e.members))
	for id := range e.members {
		out = append(out, id)
	}
	return out, true, nil
}
