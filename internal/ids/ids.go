package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier used as the primary key
// of every tenant-scoped record.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Valid reports whether raw parses as an identifier produced by New.
func Valid(raw string) bool {
	_, err := ulid.ParseStrict(strings.TrimSpace(raw))
	return err == nil
}

// Opaque returns a random UUID for values that must not leak ordering,
// such as token ids and request ids.
func Opaque() string {
	return uuid.NewString()
}
