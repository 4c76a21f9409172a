package rediskv_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-smkes/backend/rediskv"
)

func newTestBackend(t *testing.T) *rediskv.Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return rediskv.NewFromClient(client, nil)
}

func TestGetPutDeleteRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if _, ok, err := b.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := b.Put(ctx, "k", map[string]any{"name": "Ada"}, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := b.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = (%v, %v, %v)", v, ok, err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["name"] != "Ada" {
		t.Fatalf("Get(k) value = %v, want map with name=Ada", v)
	}

	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatalf("key still present after Delete")
	}
}

func TestMultiGetPreservesOrderAndMisses(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	_ = b.Put(ctx, "a", "va", 0)
	_ = b.Put(ctx, "c", "vc", 0)

	got, err := b.MultiGet(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("MultiGet: %v", err)
	}
	if len(got) != 3 || !got[0].OK || got[0].Value != "va" || got[1].OK || !got[2].OK || got[2].Value != "vc" {
		t.Fatalf("MultiGet = %+v", got)
	}
}

func TestSetAddRemoveMembers(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.SetAdd(ctx, "s", 1); err != nil {
		t.Fatalf("SetAdd: %v", err)
	}
	if err := b.SetAdd(ctx, "s", 2); err != nil {
		t.Fatalf("SetAdd: %v", err)
	}

	members, ok, err := b.SetMembers(ctx, "s")
	if err != nil || !ok {
		t.Fatalf("SetMembers = (%v, %v, %v)", members, ok, err)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	if len(members) != 2 || members[0] != 1 || members[1] != 2 {
		t.Fatalf("SetMembers = %v, want [1 2]", members)
	}

	if err := b.SetRemove(ctx, "s", 1); err != nil {
		t.Fatalf("SetRemove: %v", err)
	}
	members, ok, err = b.SetMembers(ctx, "s")
	if err != nil || !ok || len(members) != 1 || members[0] != 2 {
		t.Fatalf("SetMembers after remove = (%v, %v, %v), want ([2], true, nil)", members, ok, err)
	}
}

func TestSetMembersOnAbsentSet(t *testing.T) {
	b := newTestBackend(t)
	members, ok, err := b.SetMembers(context.Background(), "never-added")
	if err != nil || ok || members != nil {
		t.Fatalf("SetMembers(absent) = (%v, %v, %v), want (nil, false, nil)", members, ok, err)
	}
}
