// Package analysis transforms aligned price series into correlation matrices
// and ranked asset pairs.
package analysis

import (
	"sort"

	"github.com/aristath/corrscope/internal/domain"
)

// ReturnsTable holds day-over-day fractional returns on a shared date axis.
// Rows[i][j] is the return of Tickers[j] on Dates[i]. Only dates where every
// ticker has both that day's and the previous axis day's close survive; the
// alignment join is an intersection over valid consecutive-day pairs.
type ReturnsTable struct {
	Tickers []domain.Ticker
	Dates   []string
	Rows    [][]float64
}

// Len returns the number of return rows.
func (rt *ReturnsTable) Len() int {
	return len(rt.Rows)
}

// Column extracts one ticker's return series by column index.
func (rt *ReturnsTable) Column(j int) []float64 {
	col := make([]float64, len(rt.Rows))
	for i := range rt.Rows {
		col[i] = rt.Rows[i][j]
	}
	return col
}

// Tail returns a view of the trailing n rows (all rows if fewer exist).
// The rolling window never looks beyond available returns.
func (rt *ReturnsTable) Tail(n int) *ReturnsTable {
	if n >= len(rt.Rows) {
		return rt
	}
	start := len(rt.Rows) - n
	return &ReturnsTable{
		Tickers: rt.Tickers,
		Dates:   rt.Dates[start:],
		Rows:    rt.Rows[start:],
	}
}

// BuildReturns computes the aligned returns table for a price table.
//
// The shared date axis is the union of all series' dates. A return row for
// axis date d[k] exists only when every ticker has a close on both d[k-1]
// and d[k]; any gap for any ticker drops the entire row. The return is
// r = close[k]/close[k-1] - 1.
//
// order fixes the column order for tickers present in the table; tickers in
// the table but not in order are appended alphabetically, so the result is
// deterministic for any input.
func BuildReturns(table domain.PriceTable, order []domain.Ticker) *ReturnsTable {
	tickers := columnOrder(table, order)

	rt := &ReturnsTable{Tickers: tickers}
	if len(tickers) == 0 {
		return rt
	}

	// Per-ticker date -> close lookup.
	closes := make([]map[string]float64, len(tickers))
	dateSet := make(map[string]struct{})
	for j, ticker := range tickers {
		series := table[ticker]
		closes[j] = make(map[string]float64, len(series))
		for _, p := range series {
			closes[j][p.Date] = p.Close
			dateSet[p.Date] = struct{}{}
		}
	}

	axis := make([]string, 0, len(dateSet))
	for d := range dateSet {
		axis = append(axis, d)
	}
	sort.Strings(axis)

	for k := 1; k < len(axis); k++ {
		row := make([]float64, len(tickers))
		complete := true
		for j := range tickers {
			prev, okPrev := closes[j][axis[k-1]]
			curr, okCurr := closes[j][axis[k]]
			if !okPrev || !okCurr || prev == 0 {
				complete = false
				break
			}
			row[j] = curr/prev - 1
		}
		if complete {
			rt.Dates = append(rt.Dates, axis[k])
			rt.Rows = append(rt.Rows, row)
		}
	}

	return rt
}

// columnOrder resolves the deterministic ticker column order for a table.
func columnOrder(table domain.PriceTable, order []domain.Ticker) []domain.Ticker {
	tickers := make([]domain.Ticker, 0, len(table))
	seen := make(map[domain.Ticker]bool, len(table))

	for _, t := range order {
		if _, ok := table[t]; ok && !seen[t] {
			tickers = append(tickers, t)
			seen[t] = true
		}
	}

	var rest []domain.Ticker
	for t := range table {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)

	return append(tickers, rest...)
}
