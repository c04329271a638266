package cleaning

import "sort"

// flagOutliers marks rows whose quantity or unit price falls outside the IQR
// bounds computed from this chunk. Flagged rows stay in the batch; the count
// feeds quality scoring.
func flagOutliers(rows []Row, factor float64) int {
	if len(rows) < 4 {
		return 0
	}

	qty := make([]float64, len(rows))
	price := make([]float64, len(rows))
	for i, row := range rows {
		qty[i] = float64(row.Quantity)
		price[i], _ = row.UnitPrice.Float64()
	}

	qtyLo, qtyHi := iqrBounds(qty, factor)
	priceLo, priceHi := iqrBounds(price, factor)

	flagged := 0
	for i := range rows {
		hit := false
		if qty[i] < qtyLo || qty[i] > qtyHi {
			rows[i].OutlierQuantity = true
			hit = true
		}
		if price[i] < priceLo || price[i] > priceHi {
			rows[i].OutlierUnitPrice = true
			hit = true
		}
		if hit {
			flagged++
		}
	}
	return flagged
}

func iqrBounds(values []float64, factor float64) (lo, hi float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - factor*iqr, q3 + factor*iqr
}

// percentile uses linear interpolation between closest ranks on sorted input.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
