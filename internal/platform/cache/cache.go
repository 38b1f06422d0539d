package cache

import (
	"errors"
)

var (
	// ErrNotFound is returned when a key is not found in cache
	ErrNotFound = errors.New("cache: key not found")

	// ErrStale is returned together with the cached value when the entry is
	// older than the cache TTL.
	ErrStale = errors.New("cache: entry is stale")
)

// Cache is a keyed store of values refreshed from somewhere slower.
type Cache[V any] interface {
	// Get returns the value for key. A stale value is returned with ErrStale.
	Get(key string) (V, error)

	// Put stores value and marks it refreshed now.
	Put(key string, value V)

	// Delete removes a key from cache
	Delete(key string)

	Len() int
}
