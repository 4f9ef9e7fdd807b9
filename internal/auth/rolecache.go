package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultRoleCacheSize = 1024
	DefaultRoleCacheTTL  = 5 * time.Minute
)

// RoleCache is a read-through cache of tenant roles. Entries expire after the
// configured TTL and are evicted explicitly when a role changes.
type RoleCache struct {
	roles RoleStore
	cache *expirable.LRU[string, Role]
}

// NewRoleCache caches up to size roles for ttl.
func NewRoleCache(roles RoleStore, size int, ttl time.Duration) *RoleCache {
	if size <= 0 {
		size = DefaultRoleCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultRoleCacheTTL
	}
	return &RoleCache{roles: roles, cache: expirable.NewLRU[string, Role](size, nil, ttl)}
}

func roleKey(tenantID, roleID string) string { return tenantID + "/" + roleID }

// Role returns the role from cache or the store.
func (c *RoleCache) Role(ctx context.Context, tenantID, roleID string) (Role, error) {
	key := roleKey(tenantID, roleID)
	if r, ok := c.cache.Get(key); ok {
		return r, nil
	}
	r, err := c.roles.FindRole(ctx, tenantID, roleID)
	if err != nil {
		return Role{}, err
	}
	c.cache.Add(key, r)
	return r, nil
}

// Invalidate evicts one role.
func (c *RoleCache) Invalidate(tenantID, roleID string) {
	c.cache.Remove(roleKey(tenantID, roleID))
}

// Len reports the number of cached roles.
func (c *RoleCache) Len() int { return c.cache.Len() }
