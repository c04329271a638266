package transform

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/datakiln/retaildw/internal/etl/cleaning"
	"github.com/datakiln/retaildw/internal/etl/etlerr"
	"github.com/datakiln/retaildw/internal/etl/resolve"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

// Reject reason codes produced by transformation.
const (
	ReasonResolveFailed    = "dimension_resolve_failed"
	ReasonNegativeTotal    = "negative_line_total"
	ReasonLineTotalTooBig  = "line_total_overflow"
	ReasonInvoiceNotNumber = "invoice_not_numeric"
)

// maxLineTotal guards the numeric(15,2) fact column.
var maxLineTotal = decimal.RequireFromString("9999999999999.99")

// FactCandidate is a transformed row ready for quality evaluation and load.
type FactCandidate struct {
	Source cleaning.Row

	InvoiceNo       int64
	IsCredit        bool
	TransactionType string
	Category        string
	Subcategory     string
	IsGift          bool

	LineTotal decimal.Decimal

	DateKey     int
	CustomerKey int64
	ProductKey  int64
}

// QualityRecord renders the candidate as a generic column map for the quality
// engine.
func (c FactCandidate) QualityRecord() map[string]any {
	customer := c.Source.CustomerID
	if c.Source.IsGuest {
		customer = ""
	}
	description := c.Source.Description
	if description == "Unknown" {
		description = ""
	}
	return map[string]any{
		"invoice_no":       c.InvoiceNo,
		"stock_code":       c.Source.StockCode,
		"description":      description,
		"customer_id":      customer,
		"country":          c.Source.Country,
		"quantity":         c.Source.Quantity,
		"unit_price":       c.Source.UnitPrice,
		"line_total":       c.LineTotal,
		"transaction_type": c.TransactionType,
		"date_key":         c.DateKey,
		"outlier":          c.Source.OutlierQuantity || c.Source.OutlierUnitPrice,
	}
}

type Reject struct {
	Offset int64
	Reason string
	Row    cleaning.Row
}

type Result struct {
	Candidates []FactCandidate
	Rejects    []Reject
}

type Config struct {
	CancelMarker string
	DataSource   string
}

type Engine struct {
	cfg      Config
	log      *logger.Logger
	resolver resolve.Resolver
}

func NewEngine(cfg Config, resolver resolve.Resolver, baseLog *logger.Logger) *Engine {
	if cfg.CancelMarker == "" {
		cfg.CancelMarker = "C"
	}
	if cfg.DataSource == "" {
		cfg.DataSource = "CSV"
	}
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Engine{cfg: cfg, log: baseLog.With("component", "transform"), resolver: resolver}
}

// Transform applies business rules and resolves dimension keys for one batch
// of clean rows. A row whose resolution fails is diverted to the reject set;
// it never aborts the chunk.
func (e *Engine) Transform(ctx context.Context, rows []cleaning.Row) (Result, error) {
	res := Result{Candidates: make([]FactCandidate, 0, len(rows))}

	for _, row := range rows {
		cand, reason, err := e.transformRow(ctx, row)
		if err != nil {
			// Storage-level failures below the resolver abort the batch; they
			// are not a property of the row.
			if etlerr.IsTransient(err) || etlerr.IsFatal(err) {
				return res, err
			}
			e.log.Warn("dimension resolution failed",
				"offset", row.Offset, "stock_code", row.StockCode, "error", err)
			res.Rejects = append(res.Rejects, Reject{Offset: row.Offset, Reason: ReasonResolveFailed, Row: row})
			continue
		}
		if reason != "" {
			res.Rejects = append(res.Rejects, Reject{Offset: row.Offset, Reason: reason, Row: row})
			continue
		}
		res.Candidates = append(res.Candidates, cand)
	}
	return res, nil
}

func (e *Engine) transformRow(ctx context.Context, row cleaning.Row) (FactCandidate, string, error) {
	invoiceNo, isCredit, ok := parseInvoice(row.InvoiceNo, e.cfg.CancelMarker)
	if !ok {
		return FactCandidate{}, ReasonInvoiceNotNumber, nil
	}

	lineTotal := row.UnitPrice.Mul(decimal.NewFromInt(int64(row.Quantity))).Round(2)
	if lineTotal.IsNegative() {
		return FactCandidate{}, ReasonNegativeTotal, nil
	}
	if lineTotal.GreaterThan(maxLineTotal) {
		return FactCandidate{}, ReasonLineTotalTooBig, nil
	}

	category, subcategory, isGift := Categorize(row.StockCode, row.Description)
	class := classify(category, subcategory, isCredit)

	dateKey, err := e.resolver.ResolveDate(ctx, row.Timestamp)
	if err != nil {
		return FactCandidate{}, "", err
	}
	productKey, err := e.resolver.ResolveProduct(ctx, row.StockCode, resolve.ProductAttrs{
		Description: row.Description,
		Category:    category,
		Subcategory: subcategory,
		IsGift:      isGift,
		DataSource:  e.cfg.DataSource,
	})
	if err != nil {
		return FactCandidate{}, "", err
	}
	customerKey, err := e.resolver.ResolveCustomer(ctx, row.CustomerID, row.Country)
	if err != nil {
		return FactCandidate{}, "", err
	}

	return FactCandidate{
		Source:          row,
		InvoiceNo:       invoiceNo,
		IsCredit:        isCredit,
		TransactionType: class,
		Category:        category,
		Subcategory:     subcategory,
		IsGift:          isGift,
		LineTotal:       lineTotal,
		DateKey:         dateKey,
		CustomerKey:     customerKey,
		ProductKey:      productKey,
	}, "", nil
}

func parseInvoice(invoice, cancelMarker string) (int64, bool, bool) {
	isCredit := strings.HasPrefix(invoice, cancelMarker)
	digits := strings.TrimPrefix(invoice, cancelMarker)
	digits = strings.TrimRightFunc(digits, func(r rune) bool { return r >= 'A' && r <= 'Z' })
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, isCredit, false
	}
	return n, isCredit, true
}
