package cache

import (
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"fmt"
)

// FingerprintSize is the width of a Fingerprint in bytes.
const FingerprintSize = sha1.Size

// Fingerprint identifies the shape of a request, e.g. the exact query text.
// An entry whose fingerprint differs from the requested one is always
// refreshed regardless of its age.
type Fingerprint [FingerprintSize]byte

// NewFingerprint hashes the given parts into a Fingerprint. Parts are length
// prefixed so that ("ab", "c") and ("a", "bc") differ.
func NewFingerprint(parts ...string) Fingerprint {
	h := sha1.New() //nolint:gosec
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write([]byte(p))
	}
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != FingerprintSize {
		return fmt.Errorf("fingerprint must be %d hex characters, got %d", FingerprintSize*2, len(text))
	}
	if _, err := hex.Decode(f[:], text); err != nil {
		return fmt.Errorf("decode fingerprint: %w", err)
	}
	return nil
}
