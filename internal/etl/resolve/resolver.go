package resolve

import (
	"context"
	"time"

	"github.com/datakiln/retaildw/internal/data/repos"
	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/etl/etlerr"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

// ProductAttrs are the SCD1 mutable attributes overwritten on re-ingest.
type ProductAttrs struct {
	Description string
	Category    string
	Subcategory string
	IsGift      bool
	DataSource  string
}

// Resolver resolves or creates surrogate keys for the date, product and
// customer dimensions. It exclusively owns dimension-mapping mutation.
type Resolver interface {
	ResolveDate(ctx context.Context, t time.Time) (int, error)
	ResolveProduct(ctx context.Context, stockCode string, attrs ProductAttrs) (int64, error)
	ResolveCustomer(ctx context.Context, customerID, country string) (int64, error)
	CacheStats() CacheStats
}

type resolver struct {
	log       *logger.Logger
	cache     *LookupCache
	dates     repos.DimDateRepo
	products  repos.DimProductRepo
	customers repos.DimCustomerRepo

	seenDates map[int]bool
}

func NewResolver(
	cache *LookupCache,
	dates repos.DimDateRepo,
	products repos.DimProductRepo,
	customers repos.DimCustomerRepo,
	baseLog *logger.Logger,
) Resolver {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &resolver{
		log:       baseLog.With("component", "resolver"),
		cache:     cache,
		dates:     dates,
		products:  products,
		customers: customers,
		seenDates: make(map[int]bool),
	}
}

// ResolveDate is a pure function of the transaction date plus an idempotent
// ensure-insert. Keys are deterministic YYYYMMDD integers.
func (r *resolver) ResolveDate(ctx context.Context, t time.Time) (int, error) {
	row := DateRow(t)
	if r.seenDates[row.DateKey] {
		return row.DateKey, nil
	}
	if err := r.dates.Ensure(dbctx.New(ctx), row); err != nil {
		return 0, etlerr.ClassifyStorage("resolve date", err)
	}
	r.seenDates[row.DateKey] = true
	return row.DateKey, nil
}

// ResolveProduct is the SCD1 path: an atomic upsert that overwrites mutable
// attributes in place and bumps version_created_at. No history row is created
// and the surrogate key never changes for a stock code.
func (r *resolver) ResolveProduct(ctx context.Context, stockCode string, attrs ProductAttrs) (int64, error) {
	if entry, ok := r.cache.Get(DimensionProduct, stockCode); ok && entry.Attr == attrs.Description {
		return entry.Key, nil
	}

	now := time.Now().UTC()
	row := &types.DimProduct{
		StockCode:        stockCode,
		Description:      attrs.Description,
		Category:         attrs.Category,
		Subcategory:      attrs.Subcategory,
		IsGift:           attrs.IsGift,
		IsActive:         true,
		VersionCreatedAt: &now,
		DataSource:       orCSV(attrs.DataSource),
	}
	key, err := r.products.Upsert(dbctx.New(ctx), row)
	if err != nil {
		return 0, etlerr.ClassifyStorage("resolve product", err)
	}
	r.cache.Put(DimensionProduct, stockCode, CacheEntry{Key: key, Attr: attrs.Description})
	return key, nil
}

// ResolveCustomer is the SCD2 path. An unchanged tracked attribute (country)
// returns the current key; a changed one atomically expires the current row
// and inserts a fresh current row, invalidating the cache entry before the
// new key is handed downstream.
func (r *resolver) ResolveCustomer(ctx context.Context, customerID, country string) (int64, error) {
	dbc := dbctx.New(ctx)

	if entry, ok := r.cache.Get(DimensionCustomer, customerID); ok && entry.Attr == country {
		return entry.Key, nil
	}

	current, err := r.customers.GetCurrent(dbc, customerID)
	if err != nil {
		return 0, etlerr.ClassifyStorage("resolve customer", err)
	}

	if current == nil {
		row := &types.DimCustomer{
			CustomerID:    customerID,
			Country:       country,
			EffectiveDate: time.Now().UTC(),
			IsCurrent:     true,
			DataSource:    "CSV",
		}
		created, err := r.customers.EnsureCurrent(dbc, row)
		if err != nil {
			return 0, etlerr.ClassifyStorage("resolve customer", err)
		}
		if created == nil {
			return 0, &etlerr.IntegrityError{Op: "resolve customer", Err: errNoCurrentRow(customerID)}
		}
		// The insert may have lost an upsert race; trust whatever country the
		// winning row carries.
		r.cache.Put(DimensionCustomer, customerID, CacheEntry{Key: created.CustomerKey, Attr: created.Country})
		if created.Country != country {
			return r.rotateCustomer(dbc, created, country)
		}
		return created.CustomerKey, nil
	}

	if current.Country == country {
		r.cache.Put(DimensionCustomer, customerID, CacheEntry{Key: current.CustomerKey, Attr: country})
		return current.CustomerKey, nil
	}

	return r.rotateCustomer(dbc, current, country)
}

func (r *resolver) rotateCustomer(dbc dbctx.Context, current *types.DimCustomer, country string) (int64, error) {
	// Invalidate before the rotation lands so no reader can pick up the
	// expired key between the expiry and the cache refresh.
	r.cache.Invalidate(DimensionCustomer, current.CustomerID)

	replacement := &types.DimCustomer{
		CustomerID: current.CustomerID,
		Country:    country,
		DataSource: current.DataSource,
	}
	rotated, err := r.customers.Rotate(dbc, current.CustomerKey, replacement)
	if err != nil {
		return 0, etlerr.ClassifyStorage("rotate customer", err)
	}
	r.log.Debug("customer dimension rotated",
		"customer_id", current.CustomerID,
		"old_key", current.CustomerKey,
		"new_key", rotated.CustomerKey,
	)
	r.cache.Put(DimensionCustomer, current.CustomerID, CacheEntry{Key: rotated.CustomerKey, Attr: country})
	return rotated.CustomerKey, nil
}

func (r *resolver) CacheStats() CacheStats { return r.cache.Stats() }

func orCSV(s string) string {
	if s == "" {
		return "CSV"
	}
	return s
}

type errNoCurrentRow string

func (e errNoCurrentRow) Error() string {
	return "no current dimension row for customer " + string(e)
}
