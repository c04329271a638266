package resolve

import (
	"testing"
	"time"
)

func TestLookupCacheHitMiss(t *testing.T) {
	c := NewLookupCache(8, time.Minute)

	if _, ok := c.Get(DimensionProduct, "85123A"); ok {
		t.Fatalf("empty cache should miss")
	}
	c.Put(DimensionProduct, "85123A", CacheEntry{Key: 7})
	entry, ok := c.Get(DimensionProduct, "85123A")
	if !ok || entry.Key != 7 {
		t.Fatalf("expected hit with key 7, got ok=%v entry=%+v", ok, entry)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("stats: want hits=1 misses=1 got %+v", stats)
	}
}

func TestLookupCacheShardsAreIndependent(t *testing.T) {
	c := NewLookupCache(8, time.Minute)
	c.Put(DimensionProduct, "17850", CacheEntry{Key: 1})
	if _, ok := c.Get(DimensionCustomer, "17850"); ok {
		t.Fatalf("customer shard should not see product entries")
	}
}

func TestLookupCacheInvalidate(t *testing.T) {
	c := NewLookupCache(8, time.Minute)
	c.Put(DimensionCustomer, "17850", CacheEntry{Key: 42, Attr: "United Kingdom"})
	c.Invalidate(DimensionCustomer, "17850")
	if _, ok := c.Get(DimensionCustomer, "17850"); ok {
		t.Fatalf("invalidated entry should miss")
	}
}

func TestLookupCacheEvictionCounter(t *testing.T) {
	c := NewLookupCache(2, time.Minute)
	c.Put(DimensionProduct, "a", CacheEntry{Key: 1})
	c.Put(DimensionProduct, "b", CacheEntry{Key: 2})
	c.Put(DimensionProduct, "c", CacheEntry{Key: 3})

	if stats := c.Stats(); stats.Evictions != 1 {
		t.Fatalf("evictions: want=1 got=%d", stats.Evictions)
	}
	if _, ok := c.Get(DimensionProduct, "a"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
}

func TestLookupCacheTTLExpiry(t *testing.T) {
	c := NewLookupCache(8, 20*time.Millisecond)
	c.Put(DimensionProduct, "85123A", CacheEntry{Key: 7})
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get(DimensionProduct, "85123A"); ok {
		t.Fatalf("expired entry should miss")
	}
}
