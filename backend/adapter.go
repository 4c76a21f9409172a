// Package backend defines the Backend Adapter contract (spec §4.2): the
// required get/put/delete operations every key-value store must provide,
// and the optional capability interfaces (set-add, set-remove,
// set-members, multi-get) that a backend may additionally implement to
// get native, single-operation atomicity instead of the Set Lock
// fallback.
package backend

import (
	"context"
	"time"
)

// Adapter is the required surface of any backend the engine can run
// against. Get returns (nil, false, nil) on a miss — a miss is not an
// error.
type Adapter interface {
	Get(ctx context.Context, key string) (value any, ok bool, err error)
	Put(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SetAdder is an optional capability: a backend with genuine server-side
// sets (e.g. Redis SADD) implements it to get single-operation atomicity
// for reverse-index membership writes.
type SetAdder interface {
	SetAdd(ctx context.Context, setKey string, member uint64) error
}

// SetRemover is the removal counterpart of SetAdder.
type SetRemover interface {
	SetRemove(ctx context.Context, setKey string, member uint64) error
}

// SetMembersReader reads the members of a native set. ok is false when
// the set is absent or empty.
type SetMembersReader interface {
	SetMembers(ctx context.Context, setKey string) (members []uint64, ok bool, err error)
}

// MultiGetter reads several keys in one round trip. The returned slice has
// exactly one entry per input key, in order; a miss is represented the
// same way Get represents one (nil value).
type MultiGetter interface {
	MultiGet(ctx context.Context, keys []string) ([]MultiGetResult, error)
}

// MultiGetResult is one entry of a MultiGetter response.
type MultiGetResult struct {
	Value any
	OK    bool
}

// Capabilities is the flat, process-wide record of which optional
// operations an Adapter supports, resolved once at startup (spec §4.2,
// §9 "process-wide state") and consulted by every dispatch site instead
// of re-probing the adapter.
type Capabilities struct {
	NativeSetAdd     bool
	NativeSetRemove  bool
	NativeSetMembers bool
	NativeMultiGet   bool
}

// ResolveCapabilities probes adapter once via interface type assertions
// and returns the flat capability record the rest of the module dispatches
// on. It must be called exactly once per adapter instance; re-resolving is
// only ever needed when the adapter instance itself changes (spec §4.2).
func ResolveCapabilities(adapter Adapter) Capabilities {
	_, add := adapter.(SetAdder)
	_, rem := adapter.(SetRemover)
	_, mem := adapter.(SetMembersReader)
	_, mg := adapter.(MultiGetter)
	return Capabilities{
		NativeSetAdd:     add,
		NativeSetRemove:  rem,
		NativeSetMembers: mem,
		NativeMultiGet:   mg,
	}
}

// HasNativeSets reports whether the adapter can serve sadd/srem/smembers
// natively. The three capabilities are resolved independently (spec §9:
// "the adapter is modeled as a capability set, not an inheritance tree"),
// but in practice a backend either offers all three set operations or
// none, so callers that need one full native path check this helper.
func (c Capabilities) HasNativeSets() bool {
	return c.NativeSetAdd && c.NativeSetRemove && c.NativeSetMembers
}
