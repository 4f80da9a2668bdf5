package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Store is a directory of cache entries, one subdirectory per key.
//
//	<Dir>/<key>/data.json   # the entry
//	<Dir>/<key>/.lock       # refresh lock
//
// A Store holds no mutable state of its own and is safe for concurrent use.
type Store struct {
	dir       string
	ttl       time.Duration
	coldStart time.Duration
	compress  bool
	spawner   Spawner
	logger    *log.Logger
	now       func() time.Time
}

// New creates a Store rooted at opts.Dir, creating the directory if needed.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("cache directory cannot be empty")
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s := &Store{
		dir:       dir,
		ttl:       opts.TTL,
		coldStart: opts.ColdStartTimeout,
		compress:  opts.Compress,
		spawner:   opts.Spawner,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.coldStart <= 0 {
		s.coldStart = DefaultColdStartTimeout
	}
	if s.spawner == nil {
		s.spawner = &GoroutineSpawner{}
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Dir returns the absolute storage root.
func (s *Store) Dir() string {
	return s.dir
}

// Load returns the payload cached under key.
//
// If the key has never been populated a refresh is spawned and Load waits up
// to the cold start timeout for it, failing with ErrTimeout. If an entry
// exists it is returned immediately; when its fingerprint differs from fp or
// it is older than the TTL, a refresh is spawned in the background first.
// An entry that exists but cannot be read is reported as an error.
func (s *Store) Load(ctx context.Context, key string, fp Fingerprint, fetch FetchFunc) (json.RawMessage, error) {
	dir, err := s.keyDir(key)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, entryFileName)

	entry, err := readEntry(path)
	switch {
	case err == nil:
		age := entry.Age(s.now())
		if age < 0 {
			// Clock moved backwards since the write; the age is meaningless.
			age = s.ttl + 1
		}
		if NeedsRefresh(entry.Fingerprint, age, fp, s.ttl) {
			if err := s.spawn(key, fp, fetch); err != nil {
				s.logger.Error("unable to spawn refresh", "key", key, "error", err)
			}
		}
		return entry.Data, nil

	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		if err := s.spawn(key, fp, fetch); err != nil {
			return nil, err
		}
		return waitFor(ctx, s.logger, path, s.coldStart)

	case errors.Is(err, ErrCacheCorrupted):
		// Still an error for this call, but let the next one find a good entry.
		if err := s.spawn(key, fp, fetch); err != nil {
			s.logger.Error("unable to spawn refresh", "key", key, "error", err)
		}
		return nil, fmt.Errorf("read cache entry %q: %w", key, err)

	default:
		return nil, fmt.Errorf("read cache entry %q: %w", key, err)
	}
}

// Refresh fetches and stores a new entry for key, unless another refresh of
// the same key is already running anywhere, in which case it returns nil
// without calling fetch. Nothing is written when fetch fails.
func (s *Store) Refresh(ctx context.Context, key string, fp Fingerprint, fetch FetchFunc) error {
	dir, err := s.keyDir(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	lock, err := TryLock(dir)
	if errors.Is(err, ErrLocked) {
		s.logger.Debug("refresh already in progress", "key", key)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.logger.Warn("unable to release cache lock", "key", key, "error", err)
		}
	}()

	start := s.now()
	data, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("refresh %q: %w", key, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("refresh %q: fetch returned no data", key)
	}

	entry := Entry{
		Fingerprint: fp,
		LastRefresh: s.now().UTC(),
		Data:        data,
	}
	if err := writeEntry(filepath.Join(dir, entryFileName), entry, s.compress); err != nil {
		return fmt.Errorf("refresh %q: %w", key, err)
	}

	s.logger.Debug("cache refreshed", "key", key, "bytes", len(data), "took", s.now().Sub(start))
	return nil
}

// Get reads the entry stored under key without triggering any refresh.
func (s *Store) Get(key string) (*Entry, error) {
	dir, err := s.keyDir(key)
	if err != nil {
		return nil, err
	}
	return readEntry(filepath.Join(dir, entryFileName))
}

func (s *Store) spawn(key string, fp Fingerprint, fetch FetchFunc) error {
	req := RefreshRequest{
		Key:         key,
		Fingerprint: fp,
		Run: func() {
			// Detached from the caller: no deadline, no cancellation.
			if err := s.Refresh(context.Background(), key, fp, fetch); err != nil {
				s.logger.Error("background refresh failed", "key", key, "error", err)
			}
		},
	}
	if err := s.spawner.Spawn(req); err != nil {
		return fmt.Errorf("spawn refresh for %q: %w", key, err)
	}
	return nil
}

func (s *Store) keyDir(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key), nil
}
