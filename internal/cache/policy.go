package cache

import "time"

// NeedsRefresh reports whether a stored entry must be refreshed before it is
// considered current. A fingerprint mismatch always forces a refresh; otherwise
// the entry is refreshed once it is older than ttl.
func NeedsRefresh(stored Fingerprint, age time.Duration, requested Fingerprint, ttl time.Duration) bool {
	return stored != requested || age > ttl
}
