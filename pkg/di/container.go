// Package di provides dependency-injection constructors that wire a
// Backend Adapter, the Key Registry, the Reverse Index, and the Cache
// Engine together — one constructor per supported backend, mirroring
// the teacher's single sturdyc-only container but generalized to the
// three backends this module ships.
package di

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/goliatone/go-smkes/backend/memorykv"
	"github.com/goliatone/go-smkes/backend/rediskv"
	"github.com/goliatone/go-smkes/backend/sturdyckv"
	"github.com/goliatone/go-smkes/smkes"
)

// Container holds the singleton Engine instance and the configuration it
// was built from.
type Container struct {
	engine *smkes.Engine
	config smkes.Config
}

// Engine returns the singleton Cache Engine instance.
func (c *Container) Engine() *smkes.Engine {
	return c.engine
}

// Config returns a copy of the engine configuration this container used.
func (c *Container) Config() smkes.Config {
	return c.config
}

// NewMemoryContainer wires the Engine to the in-process memorykv backend.
// Every optional capability is native; the reverse index never falls
// back to the Set Lock against this backend.
func NewMemoryContainer(cfg smkes.Config, reg prometheus.Registerer, log *zap.Logger) (*Container, error) {
	engine, err := smkes.New(memorykv.New(), cfg, reg, log)
	if err != nil {
		return nil, err
	}
	return &Container{engine: engine, config: cfg}, nil
}

// NewSturdycContainer wires the Engine to the sturdyc in-process TTL
// cache. sturdyc has no native sets, so the reverse index runs entirely
// over the Set Lock fallback against this backend.
func NewSturdycContainer(sturdycCfg sturdyckv.Config, engineCfg smkes.Config, reg prometheus.Registerer, log *zap.Logger) (*Container, error) {
	adapter, err := sturdyckv.New(sturdycCfg, log)
	if err != nil {
		return nil, err
	}
	engine, err := smkes.New(adapter, engineCfg, reg, log)
	if err != nil {
		return nil, err
	}
	return &Container{engine: engine, config: engineCfg}, nil
}

// NewRedisContainer wires the Engine to a Redis backend, dialing the
// server per redisOpts. Every optional capability is native.
func NewRedisContainer(ctx context.Context, redisOpts rediskv.Options, engineCfg smkes.Config, reg prometheus.Registerer, log *zap.Logger) (*Container, error) {
	adapter, err := rediskv.New(ctx, redisOpts, log)
	if err != nil {
		return nil, err
	}
	engine, err := smkes.New(adapter, engineCfg, reg, log)
	if err != nil {
		return nil, err
	}
	return &Container{engine: engine, config: engineCfg}, nil
}

// NewContainerWithDefaults builds a memorykv-backed Container using
// smkes.DefaultConfig(), the lowest-friction way to get an Engine for
// tests and local development.
func NewContainerWithDefaults() (*Container, error) {
	return NewMemoryContainer(smkes.DefaultConfig(), nil, nil)
}
