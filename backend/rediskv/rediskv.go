// Package rediskv adapts a Redis server to the backend.Adapter contract,
// implementing every optional capability as a native Redis command
// (SADD, SREM, SMEMBERS, MGET). This is the adapter that gets
// single-operation set atomicity for free (spec §4.2 rationale); unlike
// sturdyckv, the reverse index never falls through to the Set Lock when
// running against it.
package rediskv

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/goliatone/go-smkes/backend"
)

var (
	_ backend.Adapter          = (*Backend)(nil)
	_ backend.SetAdder         = (*Backend)(nil)
	_ backend.SetRemover       = (*Backend)(nil)
	_ backend.SetMembersReader = (*Backend)(nil)
	_ backend.MultiGetter      = (*Backend)(nil)
)

// Options configures the underlying Redis client the way the teacher's
// redis client constructor does: short, bounded timeouts and a small
// connection pool suitable for a cache client rather than a primary
// datastore client.
type Options struct {
	Addr         string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
}

// DefaultOptions returns conservative cache-client defaults.
func DefaultOptions(addr string) Options {
	return Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}
}

// Backend wraps a *redis.Client as a backend.Adapter.
type Backend struct {
	client *redis.Client
	log    *zap.Logger
}

// New dials Redis per opts and pings it once to surface connectivity
// problems at construction time rather than on the first cache operation.
func New(ctx context.Context, opts Options, log *zap.Logger) (*Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("rediskv")

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		MaxRetries:   opts.MaxRetries,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("connection failed", zap.Error(err), zap.Duration("ping_rtt", time.Since(start)))
		return nil, err
	}
	log.Info("connection established", zap.String("addr", opts.Addr), zap.Duration("ping_rtt", time.Since(start)))

	return &Backend{client: client, log: log}, nil
}

// NewFromClient wraps an already-constructed *redis.Client, letting
// callers (and tests) hand in a client pointed at miniredis.
func NewFromClient(client *redis.Client, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{client: client, log: log.Named("rediskv")}
}

// Close closes the underlying Redis client connection.
func (b *Backend) Close() error {
	return b.client.Close()
}

// envelope is how non-set values are marshaled into Redis strings: a JSON
// object whose single "value" field holds the JSON payload, so Get can
// hand back the value's shape (object vs. list) instead of raw bytes. No
// Go type information is stored.
type envelope struct {
	Value json.RawMessage `json:"value"`
}

func encodeValue(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Value: raw})
}

func decodeValue(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(env.Value, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Get implements backend.Adapter.
func (b *Backend) Get(ctx context.Context, key string) (any, bool, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		b.log.Warn("get failed", zap.String("key", key), zap.Error(err))
		return nil, false, err
	}
	v, err := decodeValue(data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Put implements backend.Adapter. ttl of zero means "no expiration",
// matching redis.Client.Set's own convention.
func (b *Backend) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	if err := b.client.Set(ctx, key, data, ttl).Err(); err != nil {
		b.log.Warn("put failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Delete implements backend.Adapter.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		b.log.Warn("delete failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// MultiGet implements backend.MultiGetter via a single Redis MGET.
func (b *Backend) MultiGet(ctx context.Context, keys []string) ([]backend.MultiGetResult, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		b.log.Warn("multi-get failed", zap.Int("keys", len(keys)), zap.Error(err))
		return nil, err
	}
	out := make([]backend.MultiGetResult, len(keys))
	for i, item := range raw {
		if item == nil {
			continue
		}
		s, ok := item.(string)
		if !ok {
			continue
		}
		v, err := decodeValue([]byte(s))
		if err != nil {
			return nil, err
		}
		out[i] = backend.MultiGetResult{Value: v, OK: true}
	}
	return out, nil
}

// SetAdd implements backend.SetAdder via SADD.
func (b *Backend) SetAdd(ctx context.Context, setKey string, member uint64) error {
	return b.client.SAdd(ctx, setKey, strconv.FormatUint(member, 10)).Err()
}

// SetRemove implements backend.SetRemover via SREM.
func (b *Backend) SetRemove(ctx context.Context, setKey string, member uint64) error {
	return b.client.SRem(ctx, setKey, strconv.FormatUint(member, 10)).Err()
}

// SetMembers implements backend.SetMembersReader via SMEMBERS.
func (b *Backend) SetMembers(ctx context.Context, setKey string) ([]uint64, bool, error) {
	raw, err := b.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	out := make([]uint64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}
