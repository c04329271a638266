package cleaning

// Deduplication strategies over the composite key (invoice number, stock code).
const (
	DedupKeepLatest = "keep_latest"
	DedupKeepFirst  = "keep_first"
	DedupRemoveAll  = "remove_all"
)

type dedupKey struct {
	invoice string
	stock   string
}

// dedup collapses duplicate groups according to the strategy and preserves
// input order among survivors. keep_latest picks the row with the greatest
// timestamp, ties broken by input order (the later row wins).
func dedup(rows []Row, strategy string) ([]Row, int) {
	if len(rows) < 2 {
		return rows, 0
	}

	groups := make(map[dedupKey][]int, len(rows))
	order := make([]dedupKey, 0, len(rows))
	for i, row := range rows {
		k := dedupKey{invoice: row.InvoiceNo, stock: row.StockCode}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	keep := make(map[int]bool, len(rows))
	removed := 0
	for _, k := range order {
		idxs := groups[k]
		if len(idxs) == 1 {
			keep[idxs[0]] = true
			continue
		}
		switch strategy {
		case DedupRemoveAll:
			removed += len(idxs)
		case DedupKeepFirst:
			keep[idxs[0]] = true
			removed += len(idxs) - 1
		default: // keep_latest
			best := idxs[0]
			for _, i := range idxs[1:] {
				if !rows[i].Timestamp.Before(rows[best].Timestamp) {
					best = i
				}
			}
			keep[best] = true
			removed += len(idxs) - 1
		}
	}

	out := make([]Row, 0, len(keep))
	for i, row := range rows {
		if keep[i] {
			out = append(out, row)
		}
	}
	return out, removed
}
