package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// Common errors for cache operations
var (
	// ErrTimeout is returned when a cold start exceeds the wait bound.
	ErrTimeout = errors.New("timeout waiting for cached data")

	// ErrCacheCorrupted is returned when an existing entry cannot be decoded.
	ErrCacheCorrupted = errors.New("cache data corrupted")

	// ErrLocked is returned by TryLock when another holder owns the lock.
	ErrLocked = errors.New("cache directory is locked")

	// ErrInvalidKey is returned for keys that cannot name a directory.
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrItemTooLarge is returned when an item exceeds the MemoryCache capacity
	ErrItemTooLarge = errors.New("item too large for cache")
)

const (
	// DefaultTTL is how long an entry is served without triggering a refresh.
	DefaultTTL = 60 * time.Second

	// DefaultColdStartTimeout bounds how long Load waits for a key that has
	// never been populated.
	DefaultColdStartTimeout = 5 * time.Second

	entryFileName = "data.json"
	lockFileName  = ".lock"
)

// FetchFunc performs the (possibly slow) retrieval of a payload.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Entry is the record persisted for one cache key.
type Entry struct {
	Fingerprint Fingerprint     `json:"fingerprint"`
	LastRefresh time.Time       `json:"last_refresh"`
	Data        json.RawMessage `json:"data"`
}

// Age returns how long ago the entry was refreshed.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastRefresh)
}

// Options configures a Store.
type Options struct {
	// Dir is the storage root. Required.
	Dir string

	// TTL defaults to DefaultTTL.
	TTL time.Duration

	// ColdStartTimeout defaults to DefaultColdStartTimeout.
	ColdStartTimeout time.Duration

	// Compress writes entries zstd-compressed. Entries of either form are
	// always readable.
	Compress bool

	// Spawner detaches refreshes. Defaults to a GoroutineSpawner.
	Spawner Spawner

	// Logger receives refresh failures. Defaults to log.Default().
	Logger *log.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}
