package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids until the tokens would have expired on
// their own.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const denylistPrefix = "crm:revoked:"

// RedisDenylist shares revocations across API replicas.
type RedisDenylist struct {
	client redis.UniversalClient
}

var _ Denylist = (*RedisDenylist)(nil)

// NewRedisDenylist wraps an existing client.
func NewRedisDenylist(client redis.UniversalClient) *RedisDenylist {
	return &RedisDenylist{client: client}
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, denylistPrefix+tokenID, 1, ttl).Err()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	err := d.client.Get(ctx, denylistPrefix+tokenID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

// MemoryDenylist is a single-process denylist. Entries are never evicted
// before their TTL runs out; expired ones are swept on write, so the set is
// bounded by the number of tokens revoked within one token lifetime.
type MemoryDenylist struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

var _ Denylist = (*MemoryDenylist)(nil)

const denylistSweepEvery = time.Minute

// NewMemoryDenylist returns an empty denylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if !now.Before(d.nextSweep) {
		for id, until := range d.entries {
			if !now.Before(until) {
				delete(d.entries, id)
			}
		}
		d.nextSweep = now.Add(denylistSweepEvery)
	}
	if until := now.Add(ttl); until.After(d.entries[tokenID]) {
		d.entries[tokenID] = until
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !d.now().Before(until) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// Len reports how many revocations are held, expired or not.
func (d *MemoryDenylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
