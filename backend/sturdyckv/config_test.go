package sturdyckv_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-smkes/backend/sturdyckv"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := sturdyckv.DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsZeroCapacity(t *testing.T) {
	cfg := sturdyckv.DefaultConfig()
	cfg.Capacity = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for zero capacity")
	}
}

func TestValidateRejectsOutOfRangeEvictionPercentage(t *testing.T) {
	cfg := sturdyckv.DefaultConfig()
	cfg.EvictionPercentage = 101
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for eviction percentage > 100")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := sturdyckv.DefaultConfig()
	cfg.NumShards = 0
	if _, err := sturdyckv.New(cfg, nil); err == nil {
		t.Fatalf("expected New to reject an invalid config")
	}
}

func TestGetPutDeleteRoundTrip(t *testing.T) {
	b, err := sturdyckv.New(sturdyckv.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := b.Put(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get(k) = (%v, %v, %v), want (v, true, nil)", v, ok, err)
	}

	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatalf("key still present after Delete")
	}
}
