// Package smkesrepo decorates a plain CRUD store with the Cache Engine,
// the way repositorycache decorated a go-repository-bun repository in
// the teacher repo. It is deliberately ORM-agnostic: Store is the
// smallest interface a record source needs to implement, so the
// decorator works equally well in front of a SQL repository, an HTTP
// client, or a test double.
package smkesrepo

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-smkes/smkes"
)

// Store is the base collaborator a Repository wraps: plain CRUD against
// whatever source of truth the caller already has.
type Store[T smkes.RecordRef] interface {
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context, params map[string]any) ([]T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, record T) (T, error)
	Delete(ctx context.Context, record T) error
}

// Repository decorates a Store with read-through caching and
// invalidation, driven by an smkes.Engine.
type Repository[T smkes.RecordRef] struct {
	base      Store[T]
	engine    *smkes.Engine
	namespace string
	ttl       time.Duration
	strategy  smkes.UpdateStrategy
}

// Option configures a Repository at construction time.
type Option[T smkes.RecordRef] func(*Repository[T])

// WithTTL overrides the default TTL (the engine's own DefaultTTL) applied
// to entries this repository populates.
func WithTTL[T smkes.RecordRef](ttl time.Duration) Option[T] {
	return func(r *Repository[T]) { r.ttl = ttl }
}

// WithUpdateStrategy overrides the default update invalidation strategy
// (StrategyEvict).
func WithUpdateStrategy[T smkes.RecordRef](strategy smkes.UpdateStrategy) Option[T] {
	return func(r *Repository[T]) { r.strategy = strategy }
}

// New wraps base with caching backed by engine.
func New[T smkes.RecordRef](base Store[T], engine *smkes.Engine, opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{
		base:      base,
		engine:    engine,
		namespace: deriveNamespace[T](),
		strategy:  smkes.StrategyEvict,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get retrieves a single record by id, caching the result.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	return smkes.Read[T](ctx, r.engine, r.key("get"), map[string]any{"id": id}, r.ttl, func(ctx context.Context) (T, error) {
		return r.base.Get(ctx, id)
	})
}

// List retrieves every record matching params, caching the result under
// the type-level collection index so a Create evicts it.
func (r *Repository[T]) List(ctx context.Context, params map[string]any) ([]T, error) {
	return smkes.Read[[]T](ctx, r.engine, r.key("list"), params, r.ttl, func(ctx context.Context) ([]T, error) {
		return r.base.List(ctx, params)
	})
}

// Create creates record and evicts every cached collection listing of
// its type.
func (r *Repository[T]) Create(ctx context.Context, record T) (T, error) {
	return smkes.Create[T](ctx, r.engine, func(ctx context.Context) (T, error) {
		return r.base.Create(ctx, record)
	})
}

// Update applies record and invalidates its cached entries per the
// configured UpdateStrategy.
func (r *Repository[T]) Update(ctx context.Context, record T) (T, error) {
	return smkes.Update[T](ctx, r.engine, func(ctx context.Context) (T, error) {
		return r.base.Update(ctx, record)
	}, r.strategy, r.ttl)
}

// Delete removes record and flushes its cached entries.
func (r *Repository[T]) Delete(ctx context.Context, record T) error {
	_, err := smkes.Delete[T](ctx, r.engine, func(ctx context.Context) (T, error) {
		return record, r.base.Delete(ctx, record)
	})
	return err
}

func (r *Repository[T]) key(method string) string {
	return r.namespace + ":" + method
}

// deriveNamespace reflects T's type name into a snake_case namespace, the
// same way the teacher's CachedRepository derived one from the wrapped
// model type.
func deriveNamespace[T any]() string {
	var sample T
	typ := reflect.TypeOf(sample)
	if typ == nil {
		var ptr *T
		typ = reflect.TypeOf(ptr)
	}
	if typ == nil {
		return "unknown"
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	name := typ.Name()
	if name == "" {
		name = typ.String()
		if idx := strings.LastIndex(name, "."); idx != -1 {
			name = name[idx+1:]
		}
	}
	return toSnake(name)
}
