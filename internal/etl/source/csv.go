package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/datakiln/retaildw/internal/platform/logger"
)

// Record is one raw input row. It lives only for the duration of chunk
// processing; nothing downstream holds on to it after the batch commits.
type Record struct {
	// Offset is the 1-based data-row number within the source file (header
	// excluded). It is the unit of checkpoint resume.
	Offset int64

	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    string
	InvoiceDate string
	UnitPrice   string
	CustomerID  string
	Country     string
}

var expectedColumns = []string{
	"InvoiceNo", "StockCode", "Description", "Quantity",
	"InvoiceDate", "UnitPrice", "CustomerID", "Country",
}

// ChunkReader yields bounded row chunks from a retail CSV extract. The
// sequence is finite, ordered, and restartable: Open with skipRows equal to a
// persisted source offset to resume after the last committed batch.
type ChunkReader struct {
	log       *logger.Logger
	file      *os.File
	csv       *csv.Reader
	cols      map[string]int
	chunkSize int
	offset    int64
	done      bool
}

func Open(path string, chunkSize int, skipRows int64, baseLog *logger.Logger) (*ChunkReader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("source: chunk size must be positive, got %d", chunkSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("source: read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))] = i
	}
	for _, want := range expectedColumns {
		if _, ok := cols[want]; !ok {
			_ = f.Close()
			return nil, fmt.Errorf("source: missing column %q in %s", want, path)
		}
	}

	r := &ChunkReader{
		log:       baseLog.With("component", "source"),
		file:      f,
		csv:       cr,
		cols:      cols,
		chunkSize: chunkSize,
	}
	for r.offset < skipRows {
		if _, err := cr.Read(); err != nil {
			if err == io.EOF {
				r.done = true
				break
			}
			_ = f.Close()
			return nil, fmt.Errorf("source: skip to offset %d: %w", skipRows, err)
		}
		r.offset++
	}
	if skipRows > 0 {
		r.log.Info("resumed source at offset", "path", path, "offset", r.offset)
	}
	return r, nil
}

// Next returns the next chunk of up to chunkSize records. io.EOF signals a
// cleanly exhausted source; a shorter final chunk is not an error.
func (r *ChunkReader) Next() ([]Record, error) {
	if r.done {
		return nil, io.EOF
	}
	chunk := make([]Record, 0, r.chunkSize)
	for len(chunk) < r.chunkSize {
		raw, err := r.csv.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			// Malformed CSV line: count it against the offset and move on so a
			// single bad line cannot wedge resume forever.
			r.offset++
			r.log.Warn("skipping malformed csv line", "offset", r.offset, "error", err)
			continue
		}
		r.offset++
		chunk = append(chunk, Record{
			Offset:      r.offset,
			InvoiceNo:   r.field(raw, "InvoiceNo"),
			StockCode:   r.field(raw, "StockCode"),
			Description: r.field(raw, "Description"),
			Quantity:    r.field(raw, "Quantity"),
			InvoiceDate: r.field(raw, "InvoiceDate"),
			UnitPrice:   r.field(raw, "UnitPrice"),
			CustomerID:  r.field(raw, "CustomerID"),
			Country:     r.field(raw, "Country"),
		})
	}
	if len(chunk) == 0 {
		return nil, io.EOF
	}
	return chunk, nil
}

// Offset reports the source offset after the most recent chunk, i.e. the
// skipRows value that resumes immediately after it.
func (r *ChunkReader) Offset() int64 { return r.offset }

func (r *ChunkReader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

func (r *ChunkReader) field(raw []string, name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(raw) {
		return ""
	}
	return raw[i]
}
