package backend_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-smkes/backend"
)

// bareAdapter implements only the required surface, no optional
// capabilities, to exercise ResolveCapabilities' negative case.
type bareAdapter struct{}

func (bareAdapter) Get(context.Context, string) (any, bool, error)         { return nil, false, nil }
func (bareAdapter) Put(context.Context, string, any, time.Duration) error  { return nil }
func (bareAdapter) Delete(context.Context, string) error                  { return nil }

// fullAdapter implements every optional capability.
type fullAdapter struct{ bareAdapter }

func (fullAdapter) SetAdd(context.Context, string, uint64) error    { return nil }
func (fullAdapter) SetRemove(context.Context, string, uint64) error { return nil }
func (fullAdapter) SetMembers(context.Context, string) ([]uint64, bool, error) {
	return nil, false, nil
}
func (fullAdapter) MultiGet(context.Context, []string) ([]backend.MultiGetResult, error) {
	return nil, nil
}

func TestResolveCapabilitiesBareAdapter(t *testing.T) {
	caps := backend.ResolveCapabilities(bareAdapter{})
	if caps.NativeSetAdd || caps.NativeSetRemove || caps.NativeSetMembers || caps.NativeMultiGet {
		t.Fatalf("bare adapter should report no capabilities, got %+v", caps)
	}
	if caps.HasNativeSets() {
		t.Fatalf("bare adapter should not report HasNativeSets")
	}
}

func TestResolveCapabilitiesFullAdapter(t *testing.T) {
	caps := backend.ResolveCapabilities(fullAdapter{})
	if !caps.NativeSetAdd || !caps.NativeSetRemove || !caps.NativeSetMembers || !caps.NativeMultiGet {
		t.Fatalf("full adapter should report every capability, got %+v", caps)
	}
	if !caps.HasNativeSets() {
		t.Fatalf("full adapter should report HasNativeSets")
	}
}
