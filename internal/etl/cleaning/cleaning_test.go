package cleaning

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/datakiln/retaildw/internal/etl/source"
)

func rec(invoice, stock, desc, qty, date, price, customer, country string) source.Record {
	return source.Record{
		InvoiceNo:   invoice,
		StockCode:   stock,
		Description: desc,
		Quantity:    qty,
		InvoiceDate: date,
		UnitPrice:   price,
		CustomerID:  customer,
		Country:     country,
	}
}

func TestCleanValidRecord(t *testing.T) {
	e := NewEngine(Config{}, nil)
	res := e.Clean([]source.Record{
		rec("536365", "85123a", "  WHITE HANGING  HEART ", "6", "2010-12-01 08:26:00", "2.55", "17850.0", "uk"),
	})

	if len(res.Rejects) != 0 {
		t.Fatalf("expected no rejects, got %d (%v)", len(res.Rejects), res.RuleCounts)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if row.StockCode != "85123A" {
		t.Fatalf("stock code: want=85123A got=%s", row.StockCode)
	}
	if row.Description != "White Hanging Heart" {
		t.Fatalf("description: want=%q got=%q", "White Hanging Heart", row.Description)
	}
	if row.CustomerID != "17850" {
		t.Fatalf("customer id: want=17850 got=%s", row.CustomerID)
	}
	if row.Country != "United Kingdom" {
		t.Fatalf("country: want=United Kingdom got=%s", row.Country)
	}
	if !row.UnitPrice.Equal(decimal.RequireFromString("2.55")) {
		t.Fatalf("unit price: want=2.55 got=%s", row.UnitPrice)
	}
}

func TestCleanRejectReasons(t *testing.T) {
	e := NewEngine(Config{}, nil)
	cases := []struct {
		name   string
		record source.Record
		reason string
	}{
		{"bad invoice", rec("ABC", "85123A", "d", "1", "2010-12-01 08:26:00", "1.00", "1", "UK"), ReasonInvalidInvoice},
		{"short invoice", rec("1234", "85123A", "d", "1", "2010-12-01 08:26:00", "1.00", "1", "UK"), ReasonInvalidInvoice},
		{"missing stock", rec("536365", "  ", "d", "1", "2010-12-01 08:26:00", "1.00", "1", "UK"), ReasonMissingStockCode},
		{"missing quantity", rec("536365", "85123A", "d", "", "2010-12-01 08:26:00", "1.00", "1", "UK"), ReasonMissingQuantity},
		{"zero quantity", rec("536365", "85123A", "d", "0", "2010-12-01 08:26:00", "1.00", "1", "UK"), ReasonZeroQuantity},
		{"bad quantity", rec("536365", "85123A", "d", "many", "2010-12-01 08:26:00", "1.00", "1", "UK"), ReasonInvalidQuantity},
		{"missing price", rec("536365", "85123A", "d", "1", "2010-12-01 08:26:00", "", "1", "UK"), ReasonMissingUnitPrice},
		{"bad price", rec("536365", "85123A", "d", "1", "2010-12-01 08:26:00", "free", "1", "UK"), ReasonInvalidUnitPrice},
		{"bad date", rec("536365", "85123A", "d", "1", "yesterday", "1.00", "1", "UK"), ReasonInvalidDate},
		{"date too old", rec("536365", "85123A", "d", "1", "1999-01-01 00:00:00", "1.00", "1", "UK"), ReasonDateOutOfRange},
	}
	for _, tc := range cases {
		res := e.Clean([]source.Record{tc.record})
		if len(res.Rejects) != 1 {
			t.Fatalf("%s: expected 1 reject, got %d rows=%d", tc.name, len(res.Rejects), len(res.Rows))
		}
		if res.Rejects[0].Reason != tc.reason {
			t.Fatalf("%s: reason want=%s got=%s", tc.name, tc.reason, res.Rejects[0].Reason)
		}
		if res.RuleCounts[tc.reason] != 1 {
			t.Fatalf("%s: rule count missing for %s", tc.name, tc.reason)
		}
	}
}

func TestCleanCancellationInvoiceAccepted(t *testing.T) {
	e := NewEngine(Config{}, nil)
	res := e.Clean([]source.Record{
		rec("C536365", "85123A", "d", "-6", "2010-12-01 08:26:00", "2.55", "1", "UK"),
	})
	if len(res.Rows) != 1 {
		t.Fatalf("cancellation invoice should clean, got %d rejects", len(res.Rejects))
	}
	if res.Rows[0].Quantity != 6 {
		t.Fatalf("quantity should be absolute: want=6 got=%d", res.Rows[0].Quantity)
	}
}

func TestCleanGuestSubstitution(t *testing.T) {
	e := NewEngine(Config{}, nil)
	res := e.Clean([]source.Record{
		rec("536365", "85123A", "d", "1", "2010-12-01 08:26:00", "1.00", "", "UK"),
	})
	if len(res.Rows) != 1 {
		t.Fatalf("guest record should survive cleaning")
	}
	if res.Rows[0].CustomerID != Guest || !res.Rows[0].IsGuest {
		t.Fatalf("expected guest sentinel, got id=%s guest=%v", res.Rows[0].CustomerID, res.Rows[0].IsGuest)
	}
	if res.GuestSubstituted != 1 {
		t.Fatalf("guest substitution count: want=1 got=%d", res.GuestSubstituted)
	}
}

func TestCleanEmptyDescriptionBecomesUnknown(t *testing.T) {
	e := NewEngine(Config{}, nil)
	res := e.Clean([]source.Record{
		rec("536365", "85123A", "   ", "1", "2010-12-01 08:26:00", "1.00", "1", "UK"),
	})
	if len(res.Rows) != 1 {
		t.Fatalf("expected the row to survive")
	}
	if res.Rows[0].Description != "Unknown" {
		t.Fatalf("description: want=Unknown got=%q", res.Rows[0].Description)
	}
}

func TestDedupKeepLatest(t *testing.T) {
	base := time.Date(2010, 12, 1, 8, 0, 0, 0, time.UTC)
	rows := []Row{
		{InvoiceNo: "536365", StockCode: "85123A", Quantity: 1, Timestamp: base},
		{InvoiceNo: "536365", StockCode: "85123A", Quantity: 2, Timestamp: base.Add(time.Hour)},
		{InvoiceNo: "536365", StockCode: "71053", Quantity: 3, Timestamp: base},
	}
	out, removed := dedup(rows, DedupKeepLatest)
	if removed != 1 {
		t.Fatalf("removed: want=1 got=%d", removed)
	}
	if len(out) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(out))
	}
	if out[0].Quantity != 2 {
		t.Fatalf("keep_latest should keep the later duplicate, got quantity=%d", out[0].Quantity)
	}
}

func TestDedupKeepLatestTieLaterInputWins(t *testing.T) {
	ts := time.Date(2010, 12, 1, 8, 0, 0, 0, time.UTC)
	rows := []Row{
		{InvoiceNo: "536365", StockCode: "85123A", Quantity: 1, Timestamp: ts},
		{InvoiceNo: "536365", StockCode: "85123A", Quantity: 2, Timestamp: ts},
	}
	out, _ := dedup(rows, DedupKeepLatest)
	if len(out) != 1 || out[0].Quantity != 2 {
		t.Fatalf("equal timestamps should keep the later input row, got %+v", out)
	}
}

func TestDedupKeepFirstAndRemoveAll(t *testing.T) {
	base := time.Date(2010, 12, 1, 8, 0, 0, 0, time.UTC)
	rows := []Row{
		{InvoiceNo: "536365", StockCode: "85123A", Quantity: 1, Timestamp: base},
		{InvoiceNo: "536365", StockCode: "85123A", Quantity: 2, Timestamp: base.Add(time.Hour)},
	}

	out, removed := dedup(rows, DedupKeepFirst)
	if len(out) != 1 || out[0].Quantity != 1 || removed != 1 {
		t.Fatalf("keep_first: got rows=%d removed=%d", len(out), removed)
	}

	out, removed = dedup(rows, DedupRemoveAll)
	if len(out) != 0 || removed != 2 {
		t.Fatalf("remove_all: got rows=%d removed=%d", len(out), removed)
	}
}

func TestFlagOutliers(t *testing.T) {
	rows := make([]Row, 0, 9)
	for i := 0; i < 8; i++ {
		rows = append(rows, Row{Quantity: 5, UnitPrice: decimal.NewFromFloat(2.50)})
	}
	rows = append(rows, Row{Quantity: 5000, UnitPrice: decimal.NewFromFloat(2.50)})

	flagged := flagOutliers(rows, 1.5)
	if flagged != 1 {
		t.Fatalf("flagged: want=1 got=%d", flagged)
	}
	if !rows[8].OutlierQuantity {
		t.Fatalf("extreme quantity should be flagged")
	}
	if rows[0].OutlierQuantity || rows[0].OutlierUnitPrice {
		t.Fatalf("typical row should not be flagged")
	}
}

func TestFlagOutliersSkipsSmallChunks(t *testing.T) {
	rows := []Row{
		{Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
		{Quantity: 100000, UnitPrice: decimal.NewFromInt(1)},
	}
	if flagged := flagOutliers(rows, 1.5); flagged != 0 {
		t.Fatalf("chunks under 4 rows should not be flagged, got %d", flagged)
	}
}

func TestCustomDedupStrategyAndMarker(t *testing.T) {
	e := NewEngine(Config{DedupStrategy: DedupRemoveAll, CancelMarker: "X"}, nil)
	res := e.Clean([]source.Record{
		rec("X536365", "85123A", "d", "1", "2010-12-01 08:26:00", "1.00", "1", "UK"),
		rec("C536365", "85123A", "d", "1", "2010-12-01 08:26:00", "1.00", "1", "UK"),
	})
	if len(res.Rows) != 1 {
		t.Fatalf("custom marker: expected 1 clean row, got %d", len(res.Rows))
	}
	if len(res.Rejects) != 1 || res.Rejects[0].Reason != ReasonInvalidInvoice {
		t.Fatalf("default marker invoice should reject under custom marker")
	}
}
