// Package ulidx generates the identifiers used for client-originated records
// and queued mutations. A ULID carries a 48-bit millisecond timestamp prefix
// and an 80-bit crypto-random suffix, so ids minted offline on different
// devices do not collide and still sort lexicographically by creation time.
package ulidx

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string. It never fails and needs no network:
// entropy comes from crypto/rand and the monotonic reader guarantees strict
// ordering for ids minted within the same millisecond on this device.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Time extracts the creation timestamp embedded in id. Returns the zero
// time for malformed input.
func Time(id string) time.Time {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(parsed.Time()).UTC()
}

// IsValid reports whether id parses as a canonical ULID.
func IsValid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
