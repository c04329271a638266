package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/datakiln/retaildw/internal/platform/logger"
)

const sampleHeader = "InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country\n"

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.csv")
	if err := os.WriteFile(path, []byte(sampleHeader+body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func sampleRows(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += "536365,85123A,WHITE HANGING HEART,6,2010-12-01 08:26:00,2.55,17850,United Kingdom\n"
	}
	return out
}

func TestChunkReaderChunking(t *testing.T) {
	path := writeCSV(t, sampleRows(5))
	r, err := Open(path, 2, 0, logger.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	sizes := []int{}
	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		sizes = append(sizes, len(chunk))
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Fatalf("chunk sizes: want=[2 2 1] got=%v", sizes)
	}
	if r.Offset() != 5 {
		t.Fatalf("final offset: want=5 got=%d", r.Offset())
	}
}

func TestChunkReaderOffsetsAreOneBased(t *testing.T) {
	path := writeCSV(t, sampleRows(3))
	r, err := Open(path, 10, 0, logger.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for i, rec := range chunk {
		if rec.Offset != int64(i+1) {
			t.Fatalf("record %d offset: want=%d got=%d", i, i+1, rec.Offset)
		}
	}
}

func TestChunkReaderResume(t *testing.T) {
	path := writeCSV(t, sampleRows(5))
	r, err := Open(path, 10, 3, logger.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(chunk) != 2 {
		t.Fatalf("resume at offset 3 of 5 rows: want=2 got=%d", len(chunk))
	}
	if chunk[0].Offset != 4 {
		t.Fatalf("first resumed offset: want=4 got=%d", chunk[0].Offset)
	}
}

func TestChunkReaderResumePastEnd(t *testing.T) {
	path := writeCSV(t, sampleRows(2))
	r, err := Open(path, 10, 99, logger.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("resume past end should be EOF, got %v", err)
	}
}

func TestChunkReaderMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("InvoiceNo,StockCode\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if _, err := Open(path, 10, 0, logger.NewNop()); err == nil {
		t.Fatalf("missing columns should fail Open")
	}
}

func TestChunkReaderShortRow(t *testing.T) {
	body := sampleRows(1) + "536366,85123A,SHORT ROW\n" + sampleRows(1)
	path := writeCSV(t, body)
	r, err := Open(path, 10, 0, logger.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(chunk) != 3 {
		t.Fatalf("short row should still be read, want=3 rows got=%d", len(chunk))
	}
	if chunk[1].Quantity != "" || chunk[1].Country != "" {
		t.Fatalf("missing trailing fields should be empty: %+v", chunk[1])
	}
	if chunk[2].Offset != 3 {
		t.Fatalf("offset after short row: want=3 got=%d", chunk[2].Offset)
	}
}

func TestChunkReaderByteOrderMark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract.csv")
	body := "\uFEFF" + sampleHeader + sampleRows(1)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	r, err := Open(path, 10, 0, logger.NewNop())
	if err != nil {
		t.Fatalf("Open with BOM header: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if chunk[0].InvoiceNo != "536365" {
		t.Fatalf("first column should survive BOM strip: %+v", chunk[0])
	}
}

func TestChunkReaderEmptyFields(t *testing.T) {
	path := writeCSV(t, "536365,85123A,,6,2010-12-01 08:26:00,2.55,,\n")
	r, err := Open(path, 10, 0, logger.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if chunk[0].Description != "" || chunk[0].CustomerID != "" || chunk[0].Country != "" {
		t.Fatalf("empty fields should stay empty: %+v", chunk[0])
	}
}
