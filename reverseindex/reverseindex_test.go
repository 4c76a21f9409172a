package reverseindex_test

import (
	"context"
	"sort"
	"testing"

	"github.com/goliatone/go-smkes/backend"
	"github.com/goliatone/go-smkes/backend/memorykv"
	"github.com/goliatone/go-smkes/backend/sturdyckv"
	"github.com/goliatone/go-smkes/internal/setlock"
	"github.com/goliatone/go-smkes/reverseindex"
)

func TestInstanceAndTypeKeyNaming(t *testing.T) {
	if got, want := reverseindex.TypeKey("User"), "__set:User"; got != want {
		t.Fatalf("TypeKey = %q, want %q", got, want)
	}
	if got, want := reverseindex.InstanceKey("User", []string{"1"}), "__set:User:1"; got != want {
		t.Fatalf("InstanceKey = %q, want %q", got, want)
	}
	if got, want := reverseindex.InstanceKey("Membership", []string{"1", "2"}), "__set:Membership:1:2"; got != want {
		t.Fatalf("InstanceKey (composite pk) = %q, want %q", got, want)
	}
}

func TestDispatchesNativeWhenAvailable(t *testing.T) {
	adapter := memorykv.New()
	caps := backend.ResolveCapabilities(adapter)
	if !caps.HasNativeSets() {
		t.Fatalf("memorykv should report native sets")
	}
	idx := reverseindex.New(adapter, caps, setlock.DefaultConfig())
	ctx := context.Background()

	if err := idx.Sadd(ctx, "__set:User", 1); err != nil {
		t.Fatalf("Sadd: %v", err)
	}
	members, ok, err := idx.Smembers(ctx, "__set:User")
	if err != nil || !ok || len(members) != 1 || members[0] != 1 {
		t.Fatalf("Smembers = (%v, %v, %v), want ([1], true, nil)", members, ok, err)
	}
}

func TestFallsBackToSetLockWithoutNativeSets(t *testing.T) {
	cfg := sturdyckv.DefaultConfig()
	adapter, err := sturdyckv.New(cfg, nil)
	if err != nil {
		t.Fatalf("sturdyckv.New: %v", err)
	}
	caps := backend.ResolveCapabilities(adapter)
	if caps.HasNativeSets() {
		t.Fatalf("sturdyckv must not report native sets")
	}
	idx := reverseindex.New(adapter, caps, setlock.DefaultConfig())
	ctx := context.Background()

	if err := idx.Sadd(ctx, "__set:User", 7); err != nil {
		t.Fatalf("Sadd: %v", err)
	}
	if err := idx.Sadd(ctx, "__set:User", 8); err != nil {
		t.Fatalf("Sadd: %v", err)
	}
	members, ok, err := idx.Smembers(ctx, "__set:User")
	if err != nil || !ok {
		t.Fatalf("Smembers = (%v, %v, %v)", members, ok, err)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	if len(members) != 2 || members[0] != 7 || members[1] != 8 {
		t.Fatalf("Smembers = %v, want [7 8]", members)
	}

	if err := idx.Srem(ctx, "__set:User", 7); err != nil {
		t.Fatalf("Srem: %v", err)
	}
	members, ok, err = idx.Smembers(ctx, "__set:User")
	if err != nil || !ok || len(members) != 1 || members[0] != 8 {
		t.Fatalf("Smembers after Srem = (%v, %v, %v), want ([8], true, nil)", members, ok, err)
	}
}

func TestMgetFallsBackToSequentialReads(t *testing.T) {
	cfg := sturdyckv.DefaultConfig()
	adapter, err := sturdyckv.New(cfg, nil)
	if err != nil {
		t.Fatalf("sturdyckv.New: %v", err)
	}
	caps := backend.ResolveCapabilities(adapter)
	idx := reverseindex.New(adapter, caps, setlock.DefaultConfig())
	ctx := context.Background()

	if err := adapter.Put(ctx, "a", "va", 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := idx.Mget(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Mget: %v", err)
	}
	if len(got) != 2 || !got[0].OK || got[0].Value != "va" || got[1].OK {
		t.Fatalf("Mget = %+v, want [{va true} {<nil> false}]", got)
	}
}

func TestMgetUsesNativeMultiGetWhenAvailable(t *testing.T) {
	adapter := memorykv.New()
	caps := backend.ResolveCapabilities(adapter)
	if !caps.NativeMultiGet {
		t.Fatalf("memorykv should report native multi-get")
	}
	idx := reverseindex.New(adapter, caps, setlock.DefaultConfig())
	ctx := context.Background()
	_ = adapter.Put(ctx, "a", 1, 0)

	got, err := idx.Mget(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Mget: %v", err)
	}
	if len(got) != 2 || !got[0].OK || got[0].Value != 1 || got[1].OK {
		t.Fatalf("Mget = %+v", got)
	}
}
