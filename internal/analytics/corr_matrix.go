package analytics

import (
	"sort"

	"github.com/yourorg/pairs-analytics/internal/model"
)

// CorrelationMatrix aligns every series on the timestamps common to all of
// them and returns the pairwise correlations. Rows with a missing value in any
// series are dropped. The result is empty when no common timestamps remain.
func CorrelationMatrix(series map[string]model.Series) model.CorrelationMatrix {
	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	if len(symbols) == 0 {
		return model.CorrelationMatrix{}
	}

	// timestamp -> one value per symbol
	rows := make(map[int64][]float64)
	order := make([]int64, 0)
	for _, p := range series[symbols[0]] {
		key := p.Time.UnixNano()
		if _, seen := rows[key]; !seen {
			order = append(order, key)
		}
		row := make([]float64, len(symbols))
		row[0] = p.Value
		rows[key] = row
	}
	for j := 1; j < len(symbols); j++ {
		present := make(map[int64]bool, len(rows))
		for _, p := range series[symbols[j]] {
			key := p.Time.UnixNano()
			row, ok := rows[key]
			if !ok {
				continue
			}
			row[j] = p.Value
			present[key] = true
		}
		for key := range rows {
			if !present[key] {
				delete(rows, key)
			}
		}
	}

	columns := make([][]float64, len(symbols))
	for _, key := range order {
		row, ok := rows[key]
		if !ok || anyMissing(row) {
			continue
		}
		for j, v := range row {
			columns[j] = append(columns[j], v)
		}
	}

	n := len(columns[0])
	if n == 0 {
		return model.CorrelationMatrix{}
	}

	values := make([][]float64, len(symbols))
	for i := range symbols {
		values[i] = make([]float64, len(symbols))
	}
	for i := range symbols {
		for j := i; j < len(symbols); j++ {
			var r float64
			if n < 2 {
				r = model.Missing()
			} else {
				r = correlation(columns[i], columns[j])
			}
			values[i][j] = r
			values[j][i] = r
		}
	}

	return model.CorrelationMatrix{Symbols: symbols, Values: values, Observations: n}
}

func anyMissing(row []float64) bool {
	for _, v := range row {
		if model.IsMissing(v) {
			return true
		}
	}
	return false
}
