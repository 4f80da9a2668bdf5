// Package cache provides the on-disk freshness cache that sits between an
// interactive invocation and a slow remote fetch. Each cache key owns one
// directory holding a single entry (fingerprint, last refresh time, payload).
// Stale entries are served immediately while a refresh runs in the
// background; refreshes are serialized per key with an advisory file lock so
// that separate processes never refresh the same key concurrently.
package cache
