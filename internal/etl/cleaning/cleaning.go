package cleaning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/datakiln/retaildw/internal/etl/source"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

// Guest is the sentinel substituted for an absent customer natural key. The
// record is kept and flagged rather than rejected.
const Guest = "GUEST"

const unknownDescription = "Unknown"

// Reject reason codes.
const (
	ReasonInvalidInvoice   = "invalid_invoice_format"
	ReasonMissingStockCode = "missing_stock_code"
	ReasonMissingQuantity  = "missing_quantity"
	ReasonInvalidQuantity  = "invalid_quantity"
	ReasonZeroQuantity     = "zero_quantity"
	ReasonMissingUnitPrice = "missing_unit_price"
	ReasonInvalidUnitPrice = "invalid_unit_price"
	ReasonInvalidDate      = "invalid_date"
	ReasonDateOutOfRange   = "date_out_of_range"
)

// Row is a cleaned record. Quantity and unit price are absolute values; the
// transaction direction is recovered downstream from the invoice prefix, not
// from the raw numeric sign.
type Row struct {
	Offset int64

	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	CustomerID  string
	IsGuest     bool
	Country     string
	Timestamp   time.Time

	OutlierQuantity  bool
	OutlierUnitPrice bool
}

type Reject struct {
	Offset int64
	Reason string
	Raw    source.Record
}

// RawJSON renders the rejected source record for the rejects sink.
func (r Reject) RawJSON() []byte {
	b, err := json.Marshal(r.Raw)
	if err != nil {
		return nil
	}
	return b
}

type Result struct {
	Rows    []Row
	Rejects []Reject

	RuleCounts       map[string]int
	DuplicateCount   int
	OutlierCount     int
	GuestSubstituted int
}

type Config struct {
	// keep_latest (default), keep_first, or remove_all.
	DedupStrategy string
	// IQR multiplier for outlier bounds. 1.5 when zero.
	IQRFactor float64
	// Invoice prefix marking a cancellation. "C" when empty.
	CancelMarker string
	// Inclusive lower bound for plausible transaction dates.
	MinDate time.Time
}

func (c Config) withDefaults() Config {
	if c.DedupStrategy == "" {
		c.DedupStrategy = DedupKeepLatest
	}
	if c.IQRFactor == 0 {
		c.IQRFactor = 1.5
	}
	if c.CancelMarker == "" {
		c.CancelMarker = "C"
	}
	if c.MinDate.IsZero() {
		c.MinDate = time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return c
}

type Engine struct {
	cfg        Config
	log        *logger.Logger
	invoiceRe  *regexp.Regexp
	dateLayout []string
}

func NewEngine(cfg Config, baseLog *logger.Logger) *Engine {
	cfg = cfg.withDefaults()
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Engine{
		cfg: cfg,
		log: baseLog.With("component", "cleaning"),
		invoiceRe: regexp.MustCompile(
			fmt.Sprintf(`^(?:%s)?\d{5,7}[A-Z]?$`, regexp.QuoteMeta(cfg.CancelMarker)),
		),
		dateLayout: []string{
			"2006-01-02 15:04:05",
			"02/01/2006 15:04",
			"02-01-2006 15:04:05",
			"2006-01-02",
			"02/01/2006",
			"02-01-2006",
			time.RFC3339,
		},
	}
}

// Clean applies missing-value rules, structural validation, deduplication and
// outlier flagging to one chunk. Pure in-memory; no I/O.
func (e *Engine) Clean(chunk []source.Record) Result {
	res := Result{
		RuleCounts: make(map[string]int),
	}

	rows := make([]Row, 0, len(chunk))
	for _, rec := range chunk {
		row, reject := e.cleanRecord(rec)
		if reject != nil {
			res.RuleCounts[reject.Reason]++
			res.Rejects = append(res.Rejects, *reject)
			continue
		}
		if row.IsGuest {
			res.GuestSubstituted++
		}
		rows = append(rows, *row)
	}

	rows, dupes := dedup(rows, e.cfg.DedupStrategy)
	res.DuplicateCount = dupes
	if dupes > 0 {
		res.RuleCounts["duplicates_removed"] += dupes
	}

	res.OutlierCount = flagOutliers(rows, e.cfg.IQRFactor)
	if res.OutlierCount > 0 {
		res.RuleCounts["outliers_flagged"] += res.OutlierCount
	}

	res.Rows = rows
	return res
}

func (e *Engine) cleanRecord(rec source.Record) (*Row, *Reject) {
	invoice := strings.ToUpper(strings.TrimSpace(rec.InvoiceNo))
	if !e.invoiceRe.MatchString(invoice) {
		return nil, &Reject{Offset: rec.Offset, Reason: ReasonInvalidInvoice, Raw: rec}
	}

	stock := cleanStockCode(rec.StockCode)
	if stock == "" {
		return nil, &Reject{Offset: rec.Offset, Reason: ReasonMissingStockCode, Raw: rec}
	}

	qtyRaw := strings.TrimSpace(rec.Quantity)
	if qtyRaw == "" {
		return nil, &Reject{Offset: rec.Offset, Reason: ReasonMissingQuantity, Raw: rec}
	}
	qty, err := parseQuantity(qtyRaw)
	if err != nil {
		return nil, &Reject{Offset: rec.Offset, Reason: ReasonInvalidQuantity, Raw: rec}
	}
	if qty == 0 {
		return nil, &Reject{Offset: rec.Offset, Reason: ReasonZeroQuantity, Raw: rec}
	}
	if qty < 0 {
		qty = -qty
	}

	priceRaw := strings.TrimSpace(rec.UnitPrice)
	if priceRaw == "" {
		return nil, &Reject{Offset: rec.Offset, Reason: ReasonMissingUnitPrice, Raw: rec}
	}
	price, err := parseUnitPrice(priceRaw)
	if err != nil {
		return nil, &Reject{Offset: rec.Offset, Reason: ReasonInvalidUnitPrice, Raw: rec}
	}
	price = price.Abs()

	ts, err := e.parseTimestamp(rec.InvoiceDate)
	if err != nil {
		return nil, &Reject{Offset: rec.Offset, Reason: ReasonInvalidDate, Raw: rec}
	}
	if ts.Before(e.cfg.MinDate) || ts.After(time.Now().Add(24*time.Hour)) {
		return nil, &Reject{Offset: rec.Offset, Reason: ReasonDateOutOfRange, Raw: rec}
	}

	customer, guest := cleanCustomerID(rec.CustomerID)

	return &Row{
		Offset:      rec.Offset,
		InvoiceNo:   invoice,
		StockCode:   stock,
		Description: cleanDescription(rec.Description),
		Quantity:    qty,
		UnitPrice:   price,
		CustomerID:  customer,
		IsGuest:     guest,
		Country:     cleanCountry(rec.Country),
		Timestamp:   ts,
	}, nil
}

func (e *Engine) parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range e.dateLayout {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}
