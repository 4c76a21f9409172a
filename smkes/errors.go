package smkes

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistryExhausted names the case of the Key Registry running out
	// of ids (spec §4.1 edge case: monotonic counter space exhausted).
	// registry.Register cannot fail, and no operation in this module
	// returns this error.
	ErrRegistryExhausted = errors.New("smkes: key registry exhausted")

	// ErrNotARecord names the case of a value that does not implement
	// RecordRef. DirectWriteThrough, Flush and FlushNew take RecordRef
	// values by type, so no operation in this module returns this error.
	ErrNotARecord = errors.New("smkes: value does not implement RecordRef")

	// ErrOpaqueCachedValue is returned by DirectWriteThrough when the
	// cached value's concrete Go type was lost in a backend round trip
	// (e.g. rediskv's JSON encoding) and cannot be projected against the
	// record being written through. See DESIGN.md Open Question O2.
	ErrOpaqueCachedValue = errors.New("smkes: cached value type not addressable for write-through")
)

// LockTimeoutError is an exported wrapper shape for internal/setlock's
// timeout. No engine operation constructs one: Flush, FlushNew and
// DirectWriteThrough return the Set Lock's *setlock.ErrLockTimeout
// wrapped only with fmt.Errorf, or unwrapped.
type LockTimeoutError struct {
	SetKey string
	Err    error
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("smkes: lock timeout acquiring set %q: %v", e.SetKey, e.Err)
}

func (e *LockTimeoutError) Unwrap() error {
	return e.Err
}
