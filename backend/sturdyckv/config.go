package sturdyckv

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc-backed adapter. It
// mirrors the teacher's cacheinfra.Config almost verbatim: sturdyc's own
// constructor parameters plus the optional early-refresh knobs.
type Config struct {
	// Capacity defines the maximum number of entries the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent
	// access. Must be greater than 0. Default: 256.
	NumShards int

	// TTL is the time-to-live sturdyc applies to every entry. The engine's
	// own per-call ttl argument (spec §4.2 Put) is accepted for interface
	// conformance but not forwarded per-entry: sturdyc configures TTL at
	// the client level, not per Set call (see Backend.Put).
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches capacity. Must be between 1 and 100.
	EvictionPercentage int

	// EarlyRefresh configures early refresh behavior. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig

	// EvictionInterval sets how often the cache checks for expired
	// entries. Zero uses sturdyc's default interval.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig configures early refresh behavior: sturdyc can
// refresh entries before they expire when they're accessed frequently,
// preventing cache stampedes on hot keys.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: 10 * time.Second,
			MaxAsyncRefreshTime: 20 * time.Second,
			SyncRefreshTime:     30 * time.Second,
			RetryBaseDelay:      100 * time.Millisecond,
		},
	}
}

// toSturdycOptions converts Config into the variadic options sturdyc.New
// accepts, beyond the four positional constructor parameters.
func (c Config) toSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "sturdyckv: config error in field " + e.Field + ": " + e.Message
}

// Validate checks whether the configuration values are usable.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EarlyRefresh != nil {
		switch {
		case c.EarlyRefresh.MinAsyncRefreshTime < 0:
			return &ConfigError{Field: "EarlyRefresh.MinAsyncRefreshTime", Message: "must be non-negative"}
		case c.EarlyRefresh.MaxAsyncRefreshTime < 0:
			return &ConfigError{Field: "EarlyRefresh.MaxAsyncRefreshTime", Message: "must be non-negative"}
		case c.EarlyRefresh.SyncRefreshTime < 0:
			return &ConfigError{Field: "EarlyRefresh.SyncRefreshTime", Message: "must be non-negative"}
		case c.EarlyRefresh.RetryBaseDelay < 0:
			return &ConfigError{Field: "EarlyRefresh.RetryBaseDelay", Message: "must be non-negative"}
		}
	}
	return nil
}
