// Package registry implements the key registry described by the Schema
// Mutation Key Eviction Strategy: a bidirectional, monotonically growing
// map between cache-key strings and compact 64-bit integer identifiers.
//
// All reverse-index membership is expressed in terms of these identifiers
// rather than raw cache-key strings, which is what makes the reverse index
// cheap to store at scale (see the reverseindex package).
//
// Registration is idempotent under concurrency: any number of goroutines
// registering the same cache key concurrently observe the same identifier,
// and no two distinct keys are ever assigned the same one.
package registry
