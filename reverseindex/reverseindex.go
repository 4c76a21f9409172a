// Package reverseindex implements the reverse index described in spec §3
// and §4.4: the logical layer, built on a backend.Adapter plus the Set
// Lock fallback, that maintains per-record-identity and per-record-type
// sets of cache-key identifiers.
//
// Dispatch follows spec §4.2's first and third tiers: native adapter
// capability when available, the Set Lock fallback otherwise. This
// module implements no raw-command path (spec's second tier, for
// backends that expose a generic command interface without surfacing
// typed set operations) — see DESIGN.md Open Question O1.
package reverseindex

import (
	"context"
	"strings"

	"github.com/goliatone/go-smkes/backend"
	"github.com/goliatone/go-smkes/internal/setlock"
)

// setKeyPrefix namespaces every reverse-index key so it can never collide
// with an ordinary caller cache key (spec §6).
const setKeyPrefix = "__set:"

// InstanceKey returns the backend key for the instance index set of a
// record identity (typeTag, pk).
func InstanceKey(typeTag string, pk []string) string {
	parts := append([]string{setKeyPrefix + typeTag}, pk...)
	return strings.Join(parts, ":")
}

// TypeKey returns the backend key for the type index set of typeTag.
func TypeKey(typeTag string) string {
	return setKeyPrefix + typeTag
}

// Index is the reverse index: sadd/srem/smembers over set keys, dispatched
// to native adapter capabilities when available and to the Set Lock
// fallback otherwise.
type Index struct {
	adapter backend.Adapter
	caps    backend.Capabilities
	lock    *setlock.Store
}

// New constructs an Index over adapter using the already-resolved caps
// (spec §4.2, §9: capabilities are resolved once, process-wide, and
// passed in rather than re-probed here).
func New(adapter backend.Adapter, caps backend.Capabilities, lockCfg setlock.Config) *Index {
	return &Index{
		adapter: adapter,
		caps:    caps,
		lock:    setlock.New(adapter, lockCfg),
	}
}

// Sadd adds member to the set at setKey.
func (idx *Index) Sadd(ctx context.Context, setKey string, member uint64) error {
	if idx.caps.NativeSetAdd {
		return idx.adapter.(backend.SetAdder).SetAdd(ctx, setKey, member)
	}
	return idx.lock.Sadd(ctx, setKey, member)
}

// Srem removes member from the set at setKey.
func (idx *Index) Srem(ctx context.Context, setKey string, member uint64) error {
	if idx.caps.NativeSetRemove {
		return idx.adapter.(backend.SetRemover).SetRemove(ctx, setKey, member)
	}
	return idx.lock.Srem(ctx, setKey, member)
}

// Smembers returns the members of the set at setKey. ok is false when the
// set is absent or empty.
func (idx *Index) Smembers(ctx context.Context, setKey string) ([]uint64, bool, error) {
	if idx.caps.NativeSetMembers {
		return idx.adapter.(backend.SetMembersReader).SetMembers(ctx, setKey)
	}
	return idx.lock.Smembers(ctx, setKey)
}

// Mget reads several backend keys, one entry per input key, in order.
// When the adapter offers MultiGet natively it is used in one round trip;
// otherwise the reads are issued sequentially, matching the fallback
// contract in spec §4.3.
func (idx *Index) Mget(ctx context.Context, keys []string) ([]backend.MultiGetResult, error) {
	if idx.caps.NativeMultiGet {
		return idx.adapter.(backend.MultiGetter).MultiGet(ctx, keys)
	}
	out := make([]backend.MultiGetResult, len(keys))
	for i, k := range keys {
		v, ok, err := idx.adapter.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = backend.MultiGetResult{Value: v, OK: ok}
	}
	return out, nil
}
