package resolve

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Dimension names used as cache scopes.
const (
	DimensionProduct  = "product"
	DimensionCustomer = "customer"
)

// CacheEntry memoizes a natural-key resolution. Attr carries the tracked SCD2
// attribute (country for customers) so a changed attribute is detected without
// a round trip.
type CacheEntry struct {
	Key  int64
	Attr string
}

// LookupCache is a bounded, TTL-based memoization of natural-key to
// surrogate-key mappings. Entries past their TTL count as misses. Counters are
// monotonic for the lifetime of the process.
type LookupCache struct {
	products  *expirable.LRU[string, CacheEntry]
	customers *expirable.LRU[string, CacheEntry]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

func NewLookupCache(capacity int, ttl time.Duration) *LookupCache {
	if capacity <= 0 {
		capacity = 10000
	}
	c := &LookupCache{}
	onEvict := func(string, CacheEntry) { c.evictions.Add(1) }
	c.products = expirable.NewLRU[string, CacheEntry](capacity, onEvict, ttl)
	c.customers = expirable.NewLRU[string, CacheEntry](capacity, onEvict, ttl)
	return c
}

func (c *LookupCache) shard(dimension string) *expirable.LRU[string, CacheEntry] {
	switch dimension {
	case DimensionCustomer:
		return c.customers
	default:
		return c.products
	}
}

func (c *LookupCache) Get(dimension, naturalKey string) (CacheEntry, bool) {
	entry, ok := c.shard(dimension).Get(naturalKey)
	if ok {
		c.hits.Add(1)
		return entry, true
	}
	c.misses.Add(1)
	return CacheEntry{}, false
}

func (c *LookupCache) Put(dimension, naturalKey string, entry CacheEntry) {
	c.shard(dimension).Add(naturalKey, entry)
}

// Invalidate removes the entry outright. Required (not merely an overwrite)
// when an SCD2 rotation expires a current row, so a stale current key cannot
// be reused inside the same batch.
func (c *LookupCache) Invalidate(dimension, naturalKey string) {
	c.shard(dimension).Remove(naturalKey)
}

func (c *LookupCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
