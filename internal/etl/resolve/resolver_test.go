package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/datakiln/retaildw/internal/data/repos"
	"github.com/datakiln/retaildw/internal/data/repos/testutil"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
)

// newTestResolver builds a resolver whose repos run inside the rollback tx.
func newTestResolver(t *testing.T) (Resolver, *repoSet) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	set := &repoSet{
		dates:     repos.NewDimDateRepo(tx, log),
		products:  repos.NewDimProductRepo(tx, log),
		customers: repos.NewDimCustomerRepo(tx, log),
	}
	cache := NewLookupCache(64, time.Minute)
	return NewResolver(cache, set.dates, set.products, set.customers, log), set
}

type repoSet struct {
	dates     repos.DimDateRepo
	products  repos.DimProductRepo
	customers repos.DimCustomerRepo
}

func TestResolveDateIsIdempotent(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	ts := time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC)

	key, err := r.ResolveDate(ctx, ts)
	if err != nil {
		t.Fatalf("ResolveDate: %v", err)
	}
	if key != 20101201 {
		t.Fatalf("date key: want=20101201 got=%d", key)
	}

	again, err := r.ResolveDate(ctx, ts.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ResolveDate again: %v", err)
	}
	if again != key {
		t.Fatalf("same day must map to the same key: %d vs %d", key, again)
	}
}

func TestResolveProductCachesKey(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	attrs := ProductAttrs{Description: "White Hanging Heart", Category: "Uncategorized", Subcategory: "General"}

	key, err := r.ResolveProduct(ctx, "85123A", attrs)
	if err != nil {
		t.Fatalf("ResolveProduct: %v", err)
	}
	if key == 0 {
		t.Fatalf("surrogate key should be assigned")
	}

	again, err := r.ResolveProduct(ctx, "85123A", attrs)
	if err != nil {
		t.Fatalf("ResolveProduct again: %v", err)
	}
	if again != key {
		t.Fatalf("SCD1 key must be stable: %d vs %d", key, again)
	}

	stats := r.CacheStats()
	if stats.Hits < 1 {
		t.Fatalf("second resolve should hit the cache, stats=%+v", stats)
	}
}

func TestResolveCustomerRotatesOnCountryChange(t *testing.T) {
	r, set := newTestResolver(t)
	ctx := context.Background()

	key1, err := r.ResolveCustomer(ctx, "12583", "France")
	if err != nil {
		t.Fatalf("ResolveCustomer: %v", err)
	}

	// Same country resolves to the same current key.
	same, err := r.ResolveCustomer(ctx, "12583", "France")
	if err != nil {
		t.Fatalf("ResolveCustomer same: %v", err)
	}
	if same != key1 {
		t.Fatalf("unchanged country must reuse the key: %d vs %d", key1, same)
	}

	// Changed country rotates to a fresh surrogate key.
	key2, err := r.ResolveCustomer(ctx, "12583", "Germany")
	if err != nil {
		t.Fatalf("ResolveCustomer rotate: %v", err)
	}
	if key2 == key1 {
		t.Fatalf("rotation must mint a new key")
	}

	count, err := set.customers.CurrentCount(dbctx.New(ctx), "12583")
	if err != nil {
		t.Fatalf("CurrentCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("single-current invariant violated: %d current rows", count)
	}

	// Subsequent resolves land on the rotated key.
	key3, err := r.ResolveCustomer(ctx, "12583", "Germany")
	if err != nil {
		t.Fatalf("ResolveCustomer after rotate: %v", err)
	}
	if key3 != key2 {
		t.Fatalf("post-rotation key drifted: %d vs %d", key2, key3)
	}
}

func TestResolveCustomerGuestSentinel(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	key1, err := r.ResolveCustomer(ctx, "GUEST", "United Kingdom")
	if err != nil {
		t.Fatalf("ResolveCustomer guest: %v", err)
	}
	key2, err := r.ResolveCustomer(ctx, "GUEST", "United Kingdom")
	if err != nil {
		t.Fatalf("ResolveCustomer guest again: %v", err)
	}
	if key1 != key2 {
		t.Fatalf("guest sentinel should map to one dimension row: %d vs %d", key1, key2)
	}
}
