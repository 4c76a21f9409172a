package smkes_test

import (
	"testing"

	"github.com/goliatone/go-smkes/pkg/testsupport"
	"github.com/goliatone/go-smkes/smkes"
)

func TestDeriveKeyWithNoParamsReturnsBareKey(t *testing.T) {
	d := smkes.NewDefaultKeyDeriver()
	if got := d.DeriveKey("users", nil); got != "users" {
		t.Fatalf("DeriveKey(users, nil) = %q, want %q", got, "users")
	}
}

func TestDeriveKeyIsOrderIndependent(t *testing.T) {
	d := smkes.NewDefaultKeyDeriver()
	a := d.DeriveKey("users", map[string]any{"limit": 10, "offset": 0})
	b := d.DeriveKey("users", map[string]any{"offset": 0, "limit": 10})
	if a != b {
		t.Fatalf("DeriveKey should be independent of map iteration order: %q != %q", a, b)
	}
}

func TestDeriveKeyDistinguishesDifferentParams(t *testing.T) {
	d := smkes.NewDefaultKeyDeriver()
	a := d.DeriveKey("users", map[string]any{"limit": 10})
	b := d.DeriveKey("users", map[string]any{"limit": 20})
	if a == b {
		t.Fatalf("different params produced the same cache key: %q", a)
	}
}

func TestDeriveKeyMatchesGoldenForNestedParams(t *testing.T) {
	d := smkes.NewDefaultKeyDeriver()
	got := d.DeriveKey("orders", map[string]any{
		"status": []string{"open", "pending"},
		"filter": map[string]any{"region": "us-east", "min": 5},
	})
	testsupport.CompareWithGolden(t, testsupport.GoldenPath("derive_key_nested_params.golden"), []byte(got))
}
