// Package smkes implements the Cache Engine: the component that
// coordinates a Backend Adapter, a Key Registry, and a Reverse Index into
// the public operations spec §4.4 describes — read, create, update
// (evict or write-through), delete, flush, flush-new, and
// direct-write-through.
package smkes

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-smkes/backend"
	"github.com/goliatone/go-smkes/registry"
	"github.com/goliatone/go-smkes/reverseindex"
)

// Engine is the Cache Engine. Construct one with New.
type Engine struct {
	backend    backend.Adapter
	registry   *registry.KeyRegistry
	index      *reverseindex.Index
	keyDeriver KeyDeriver
	cfg        Config
	metrics    *Metrics
	log        *zap.Logger
}

// New constructs an Engine bound to adapter. Capabilities are resolved
// once here (spec §4.2, §9) and never re-probed for the lifetime of the
// returned Engine.
func New(adapter backend.Adapter, cfg Config, reg prometheus.Registerer, log *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("smkes")

	caps := backend.ResolveCapabilities(adapter)
	log.Info("capabilities resolved",
		zap.Bool("native_set_add", caps.NativeSetAdd),
		zap.Bool("native_set_remove", caps.NativeSetRemove),
		zap.Bool("native_set_members", caps.NativeSetMembers),
		zap.Bool("native_multi_get", caps.NativeMultiGet),
	)

	keyReg := registry.New()
	idx := reverseindex.New(adapter, caps, cfg.Lock)

	return &Engine{
		backend:    adapter,
		registry:   keyReg,
		index:      idx,
		keyDeriver: NewDefaultKeyDeriver(),
		cfg:        cfg,
		metrics:    NewMetrics(reg, "smkes"),
		log:        log,
	}, nil
}

// WithKeyDeriver overrides the engine's KeyDeriver. Intended for tests
// that need deterministic, collision-prone keys.
func (e *Engine) WithKeyDeriver(d KeyDeriver) {
	e.keyDeriver = d
}

// FetchFunc produces the authoritative value for a cache miss. T may be a
// scalar, a RecordRef-implementing type, or a slice of one.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Read implements spec §4.4's read operation: look up the derived cache
// key; on a hit return the cached value; on a miss call fetch and cache
// its result. On a backend error (handled fail-open per spec §7) fetch is
// called and its result returned without being cached. Empty slice
// results are never cached, matching spec's "don't cache []" edge case.
func Read[T any](ctx context.Context, e *Engine, key string, params map[string]any, ttl time.Duration, fetch FetchFunc[T]) (T, error) {
	var zero T
	cacheKey := e.keyDeriver.DeriveKey(key, params)
	if ttl <= 0 {
		ttl = e.cfg.DefaultTTL
	}

	v, ok, err := e.backend.Get(ctx, cacheKey)
	if err != nil {
		e.metrics.ReadBackendError.Inc()
		e.log.Warn("read: backend get failed, falling back to fetch", zap.String("cache_key", cacheKey), zap.Error(err))
		return fetch(ctx)
	}
	if ok {
		if cached, ok2 := v.(T); ok2 {
			e.metrics.ReadHits.Inc()
			return cached, nil
		}
		e.log.Warn("read: cached value type mismatch, treating as miss", zap.String("cache_key", cacheKey))
	}

	e.metrics.ReadMisses.Inc()
	result, ferr := fetch(ctx)
	if ferr != nil {
		return zero, ferr
	}

	if serr := e.store(ctx, cacheKey, result, ttl); serr != nil {
		e.log.Warn("read: failed to populate cache", zap.String("cache_key", cacheKey), zap.Error(serr))
	}
	return result, nil
}

// store caches result under cacheKey and, when result is a RecordRef (or
// a non-empty slice of one), records the index memberships spec §4.4
// describes: every element under its own instance-index set, and for
// list results, the cache key itself under the type-index set so a later
// create on that type can evict every cached listing.
func (e *Engine) store(ctx context.Context, cacheKey string, result any, ttl time.Duration) error {
	if result == nil {
		return nil
	}

	rv := reflect.ValueOf(result)
	if rv.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return nil
		}
		if err := e.backend.Put(ctx, cacheKey, result, ttl); err != nil {
			return err
		}
		id := e.registry.Register(cacheKey)

		if first, ok := rv.Index(0).Interface().(RecordRef); ok {
			if err := e.index.Sadd(ctx, reverseindex.TypeKey(first.TypeTag()), id); err != nil {
				return err
			}
		}
		for i := 0; i < rv.Len(); i++ {
			rec, ok := rv.Index(i).Interface().(RecordRef)
			if !ok {
				continue
			}
			if err := e.index.Sadd(ctx, reverseindex.InstanceKey(rec.TypeTag(), rec.PrimaryKey()), id); err != nil {
				return err
			}
		}
		return nil
	}

	if err := e.backend.Put(ctx, cacheKey, result, ttl); err != nil {
		return err
	}
	rec, ok := result.(RecordRef)
	if !ok {
		return nil
	}
	id := e.registry.Register(cacheKey)
	return e.index.Sadd(ctx, reverseindex.InstanceKey(rec.TypeTag(), rec.PrimaryKey()), id)
}

// UpdateStrategy selects how Update invalidates the cache after a
// successful mutation (spec §4.4: "update (with two strategies)").
type UpdateStrategy int

const (
	// StrategyEvict flushes every cache entry referencing the record,
	// forcing the next read to repopulate from the source of truth.
	StrategyEvict UpdateStrategy = iota
	// StrategyWriteThrough rewrites the record in place in every cache
	// entry that already holds it, avoiding an eviction round trip.
	StrategyWriteThrough
)

// Create implements spec §4.4's create operation: run do, then flush-new
// the resulting record's type so every cached collection listing is
// evicted. A flush-new failure is logged, not returned: the write itself
// already succeeded and spec §7 treats index bookkeeping failures as
// non-fatal to the caller's mutation.
func Create[T RecordRef](ctx context.Context, e *Engine, do func(ctx context.Context) (T, error)) (T, error) {
	result, err := do(ctx)
	if err != nil {
		return result, err
	}
	if ferr := e.FlushNew(ctx, result); ferr != nil {
		e.log.Warn("create: flush-new failed", zap.String("type_tag", result.TypeTag()), zap.Error(ferr))
	}
	return result, nil
}

// Update implements spec §4.4's update operation under the chosen
// strategy.
func Update[T RecordRef](ctx context.Context, e *Engine, do func(ctx context.Context) (T, error), strategy UpdateStrategy, ttl time.Duration) (T, error) {
	result, err := do(ctx)
	if err != nil {
		return result, err
	}

	var ferr error
	switch strategy {
	case StrategyWriteThrough:
		ferr = DirectWriteThrough(ctx, e, result, ttl)
	default:
		ferr = e.Flush(ctx, result)
	}
	if ferr != nil {
		e.log.Warn("update: invalidation failed", zap.String("type_tag", result.TypeTag()), zap.Error(ferr))
	}
	return result, nil
}

// Delete implements spec §4.4's delete operation: run do, then flush the
// deleted record's instance index.
func Delete[T RecordRef](ctx context.Context, e *Engine, do func(ctx context.Context) (T, error)) (T, error) {
	result, err := do(ctx)
	if err != nil {
		return result, err
	}
	if ferr := e.Flush(ctx, result); ferr != nil {
		e.log.Warn("delete: flush failed", zap.String("type_tag", result.TypeTag()), zap.Error(ferr))
	}
	return result, nil
}

// Flush evicts every cache entry referencing record's identity: the
// instance-index variant of spec §4.4's flush.
func (e *Engine) Flush(ctx context.Context, record RecordRef) error {
	return e.flushSet(ctx, reverseindex.InstanceKey(record.TypeTag(), record.PrimaryKey()))
}

// FlushNew evicts every cache entry referencing record's type, i.e. every
// cached collection listing of that type: spec §4.4's flush-new.
func (e *Engine) FlushNew(ctx context.Context, record RecordRef) error {
	return e.flushSet(ctx, reverseindex.TypeKey(record.TypeTag()))
}

// flushSet implements the shared flush algorithm of spec §4.4: resolve
// the set's member ids against the registry, separate stale ids (no
// longer registered, or registered but absent from the backend) from
// live ones, evict the live entries from the backend, and remove every
// id — stale or evicted — from both the set and the registry.
func (e *Engine) flushSet(ctx context.Context, setKey string) error {
	e.metrics.FlushOps.Inc()

	ids, ok, err := e.index.Smembers(ctx, setKey)
	if err != nil {
		return fmt.Errorf("smkes: flush: reading set %q: %w", setKey, err)
	}
	if !ok || len(ids) == 0 {
		return nil
	}

	resolved := e.registry.Resolve(ids)
	resolvedByID := make(map[uint64]string, len(resolved))
	cacheKeys := make([]string, len(resolved))
	for i, p := range resolved {
		resolvedByID[p.ID] = p.CacheKey
		cacheKeys[i] = p.CacheKey
	}

	var staleIDs []uint64
	for _, id := range ids {
		if _, ok := resolvedByID[id]; !ok {
			staleIDs = append(staleIDs, id)
		}
	}

	values, err := e.index.Mget(ctx, cacheKeys)
	if err != nil {
		e.log.Warn("flush: multi-get failed, leaving cache and index unchanged",
			zap.String("set_key", setKey), zap.Error(err))
		return nil
	}

	var liveIDs []uint64
	for i, p := range resolved {
		if values[i].OK {
			liveIDs = append(liveIDs, p.ID)
		} else {
			staleIDs = append(staleIDs, p.ID)
		}
	}
	e.metrics.FlushOrphans.Add(float64(len(staleIDs)))

	cleanup := func(id uint64) error {
		if err := e.index.Srem(ctx, setKey, id); err != nil {
			return err
		}
		e.registry.UnregisterID(id)
		return nil
	}
	evict := func(id uint64) error {
		if err := e.backend.Delete(ctx, resolvedByID[id]); err != nil {
			return err
		}
		return cleanup(id)
	}

	if len(staleIDs)+len(liveIDs) < e.cfg.FanoutThreshold {
		for _, id := range staleIDs {
			if err := cleanup(id); err != nil {
				return err
			}
		}
		for _, id := range liveIDs {
			if err := evict(id); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FanoutWorkers)
	for _, id := range staleIDs {
		id := id
		g.Go(func() error { return cleanup(id) })
	}
	for _, id := range liveIDs {
		id := id
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
				return evict(id)
			}
		})
	}
	return g.Wait()
}

// DirectWriteThrough implements spec §4.4's direct-write-through: locate
// every cache entry (singular or list-shaped) currently referencing
// record's identity and rewrite it in place, rather than evicting it.
//
// Write-through is exact when the cached value's concrete Go type still
// matches T, which holds for backends that round-trip values without
// serialization (memorykv, sturdyckv). Against a JSON-serializing
// backend such as rediskv, the cached value decodes as a generic map or
// slice of maps and can no longer be matched against T; that case
// returns ErrOpaqueCachedValue instead of guessing (see DESIGN.md Open
// Question O2). Per-entry errors are joined and returned together; a
// failure on one cache entry never prevents the others from being
// rewritten.
func DirectWriteThrough[T RecordRef](ctx context.Context, e *Engine, record T, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = e.cfg.DefaultTTL
	}
	setKey := reverseindex.InstanceKey(record.TypeTag(), record.PrimaryKey())

	ids, ok, err := e.index.Smembers(ctx, setKey)
	if err != nil {
		return fmt.Errorf("smkes: write-through: reading set %q: %w", setKey, err)
	}
	if !ok || len(ids) == 0 {
		return nil
	}

	resolved := e.registry.Resolve(ids)
	resolvedByID := make(map[uint64]string, len(resolved))
	cacheKeys := make([]string, len(resolved))
	for i, p := range resolved {
		resolvedByID[p.ID] = p.CacheKey
		cacheKeys[i] = p.CacheKey
	}
	for _, id := range ids {
		if _, ok := resolvedByID[id]; !ok {
			_ = e.index.Srem(ctx, setKey, id)
		}
	}

	values, err := e.index.Mget(ctx, cacheKeys)
	if err != nil {
		return fmt.Errorf("smkes: write-through: reading cached values for set %q: %w", setKey, err)
	}

	var errs []error
	matched := 0
	for i, p := range resolved {
		if !values[i].OK {
			_ = e.index.Srem(ctx, setKey, p.ID)
			e.registry.UnregisterID(p.ID)
			continue
		}

		newValue, replaced, perr := projectWriteThrough(values[i].Value, record)
		if perr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.CacheKey, perr))
			continue
		}
		if !replaced {
			continue
		}
		if err := e.backend.Put(ctx, p.CacheKey, newValue, ttl); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.CacheKey, err))
			continue
		}
		matched++
	}

	e.metrics.WriteThroughs.Add(float64(matched))
	return errors.Join(errs...)
}

// projectWriteThrough replaces record's occurrence inside cached, which
// is either a lone T or a slice of T, returning the rewritten value and
// whether a replacement actually happened.
func projectWriteThrough[T RecordRef](cached any, record T) (any, bool, error) {
	if single, ok := cached.(T); ok {
		if !samePrimaryKey(single.PrimaryKey(), record.PrimaryKey()) {
			return nil, false, nil
		}
		return record, true, nil
	}

	rv := reflect.ValueOf(cached)
	if cached == nil || rv.Kind() != reflect.Slice {
		return nil, false, ErrOpaqueCachedValue
	}

	elemType := reflect.TypeOf(record)
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	found := false
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		if elem.Type() != elemType {
			return nil, false, ErrOpaqueCachedValue
		}
		rec, ok := elem.Interface().(RecordRef)
		if !ok {
			return nil, false, ErrOpaqueCachedValue
		}
		if samePrimaryKey(rec.PrimaryKey(), record.PrimaryKey()) {
			out.Index(i).Set(reflect.ValueOf(record))
			found = true
		} else {
			out.Index(i).Set(elem)
		}
	}
	if !found {
		return nil, false, nil
	}
	return out.Interface(), true, nil
}
