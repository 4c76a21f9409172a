// Package sturdyckv adapts viccon/sturdyc, an in-process sharded TTL
// cache, to the backend.Adapter contract. It deliberately implements only
// the required get/put/delete operations: sturdyc has no notion of a
// server-side set, so the engine's reverse index dispatches every
// sadd/srem/smembers against this backend through the Set Lock fallback
// (internal/setlock) rather than a native path.
package sturdyckv

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
	"go.uber.org/zap"

	"github.com/goliatone/go-smkes/backend"
)

var _ backend.Adapter = (*Backend)(nil)

// Backend wraps a *sturdyc.Client[any] as a backend.Adapter.
type Backend struct {
	client *sturdyc.Client[any]
	log    *zap.Logger
}

// New validates cfg, constructs the underlying sturdyc client, and
// returns the adapter. log may be nil, in which case a no-op logger is
// used.
func New(cfg Config, log *zap.Logger) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.toSturdycOptions()...,
	)

	return &Backend{client: client, log: log.Named("sturdyckv")}, nil
}

// Get implements backend.Adapter.
func (b *Backend) Get(_ context.Context, key string) (any, bool, error) {
	v, ok := b.client.Get(key)
	return v, ok, nil
}

// Put implements backend.Adapter. ttl is accepted for interface
// conformance but not applied per call: sturdyc's TTL is fixed at client
// construction (see Config.TTL), so every entry expires on the same
// schedule regardless of the ttl argument any individual caller passes.
func (b *Backend) Put(_ context.Context, key string, value any, _ time.Duration) error {
	b.client.Set(key, value)
	return nil
}

// Delete implements backend.Adapter.
func (b *Backend) Delete(_ context.Context, key string) error {
	b.client.Delete(key)
	return nil
}

// Size reports the number of entries currently held, for diagnostics.
func (b *Backend) Size() int {
	return b.client.Size()
}
