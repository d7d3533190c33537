package flatmapper

import (
	"golang.org/x/sync/singleflight"
	"strconv"
	"strings"
	"sync"
)

// Cache is an option that can be passed to NewMapper to memoize plans
//
// implementations own eviction and expiry - Mapper only ever calls GetOrCompute, and relies on
// it to run at most one compute per key at a time
type Cache interface {
	// GetOrCompute returns the cached plan for key, calling compute (and storing the result) on a miss
	GetOrCompute(key string, compute func() (*Plan, error)) (*Plan, error)
}

const cacheKeyPrefix = "flatmapper_"

// CacheKey returns the cache key used for the named root type
//
// alphanumerics are kept, every other byte (including '_') is escaped - so distinct type names never share a key
func CacheKey(typeName string) string {
	var sb strings.Builder
	sb.WriteString(cacheKeyPrefix)
	for i := 0; i < len(typeName); i++ {
		c := typeName[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('_')
			if c < 0x10 {
				sb.WriteByte('0')
			}
			sb.WriteString(strconv.FormatUint(uint64(c), 16))
		}
	}
	return sb.String()
}

// MemoryCache is an in-memory Cache with no eviction
//
// concurrent misses for the same key share a single compute
type MemoryCache struct {
	plans sync.Map
	group singleflight.Group
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a new MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) GetOrCompute(key string, compute func() (*Plan, error)) (*Plan, error) {
	if p, ok := c.plans.Load(key); ok {
		return p.(*Plan), nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if p, ok := c.plans.Load(key); ok {
			return p, nil
		}
		p, err := compute()
		if err != nil {
			return nil, err
		}
		c.plans.Store(key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Plan), nil
}

// Forget removes the plan stored under key
func (c *MemoryCache) Forget(key string) {
	c.plans.Delete(key)
	c.group.Forget(key)
}
