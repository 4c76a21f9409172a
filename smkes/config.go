package smkes

import (
	"time"

	"github.com/goliatone/go-smkes/internal/setlock"
)

// Config controls the engine's behavior beyond wiring (backend, registry,
// reverse index), mirroring the teacher's flat Config-plus-Validate shape.
type Config struct {
	// DefaultTTL is applied when a Read call passes zero.
	DefaultTTL time.Duration

	// FanoutThreshold is the minimum member count of a set being flushed
	// before the engine parallelizes the per-member backend work with a
	// bounded errgroup instead of a sequential loop (spec §5: no ordering
	// guarantee across keys, so fanning out is always safe, just not
	// always worth the goroutine overhead for a handful of members).
	FanoutThreshold int

	// FanoutWorkers bounds the concurrency of that errgroup.
	FanoutWorkers int

	// Lock configures the Set Lock fallback used whenever the bound
	// backend lacks a native set capability.
	Lock setlock.Config
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      5 * time.Minute,
		FanoutThreshold: 100,
		FanoutWorkers:   8,
		Lock:            setlock.DefaultConfig(),
	}
}

// ConfigError reports an invalid Config field, in the teacher's
// field-plus-message shape.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "smkes: config error in field " + e.Field + ": " + e.Message
}

// Validate checks whether c is usable.
func (c Config) Validate() error {
	if c.DefaultTTL < 0 {
		return &ConfigError{Field: "DefaultTTL", Message: "must be non-negative"}
	}
	if c.FanoutThreshold < 0 {
		return &ConfigError{Field: "FanoutThreshold", Message: "must be non-negative"}
	}
	if c.FanoutWorkers <= 0 {
		return &ConfigError{Field: "FanoutWorkers", Message: "must be greater than 0"}
	}
	if c.Lock.RetryBudget <= 0 {
		return &ConfigError{Field: "Lock.RetryBudget", Message: "must be greater than 0"}
	}
	return nil
}
