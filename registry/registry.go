package registry

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Pair is a resolved (id, cacheKey) tuple returned by Resolve.
type Pair struct {
	ID       uint64
	CacheKey string
}

// KeyRegistry is the bidirectional, monotonically growing map between
// cache-key strings and compact 64-bit integer identifiers described in
// spec §4.1. The zero value is not usable; construct one with New.
type KeyRegistry struct {
	forward *xsync.MapOf[string, uint64]
	reverse *xsync.MapOf[uint64, string]
	counter atomic.Uint64
}

// New constructs an empty KeyRegistry.
func New() *KeyRegistry {
	return &KeyRegistry{
		forward: xsync.NewMapOf[string, uint64](),
		reverse: xsync.NewMapOf[uint64, string](),
	}
}

// Register returns the identifier bound to cacheKey, creating one if none
// exists. It is idempotent under concurrency: concurrent registrations of
// the same string return the same id, and no two distinct strings ever
// share an id.
//
// Identifier assignment speculatively advances a monotonic counter and
// attempts a compare-and-insert into the forward table; on a losing race
// the speculatively consumed counter value is simply abandoned, which is
// safe because the identifier space is 64 bits wide (spec §4.1).
func (r *KeyRegistry) Register(cacheKey string) uint64 {
	if id, ok := r.forward.Load(cacheKey); ok {
		return id
	}

	candidate := r.counter.Add(1)
	id, loaded := r.forward.LoadOrStore(cacheKey, candidate)
	if !loaded {
		r.reverse.Store(id, cacheKey)
	}
	return id
}

// Lookup returns the cache key bound to id, if any.
func (r *KeyRegistry) Lookup(id uint64) (string, bool) {
	return r.reverse.Load(id)
}

// Resolve returns one Pair per id in ids that still has a live mapping.
// Ids with no mapping are silently omitted; the caller (the reverse index,
// during Flush) treats those as stale references to be dropped.
func (r *KeyRegistry) Resolve(ids []uint64) []Pair {
	if len(ids) == 0 {
		return nil
	}
	pairs := make([]Pair, 0, len(ids))
	for _, id := range ids {
		if key, ok := r.reverse.Load(id); ok {
			pairs = append(pairs, Pair{ID: id, CacheKey: key})
		}
	}
	return pairs
}

// UnregisterID removes both directions of the mapping for id, if present.
// It is a no-op if id is not registered.
func (r *KeyRegistry) UnregisterID(id uint64) {
	key, ok := r.reverse.LoadAndDelete(id)
	if !ok {
		return
	}
	// Only remove the forward entry if it still points at this id: a
	// concurrent Register of the same key between our two loads above
	// would otherwise be clobbered by an unregister meant for the old id.
	r.forward.Compute(key, func(existing uint64, loaded bool) (uint64, bool) {
		if !loaded || existing != id {
			return existing, !loaded
		}
		return 0, true
	})
}

// Len reports the number of live forward mappings. Exposed for tests and
// diagnostics; not part of the spec contract.
func (r *KeyRegistry) Len() int {
	return r.forward.Size()
}
