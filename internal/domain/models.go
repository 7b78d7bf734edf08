// Package domain contains the core data types for correlation analysis.
// The domain layer is pure: no HTTP, no database, no logging dependencies.
package domain

import (
	"encoding/json"
	"math"
)

// Ticker identifies a tradable asset in the basket (e.g. "SPY", "BTC-USD").
// The ticker is the operator-facing symbol; the remote API symbol may differ
// (see the polygon client's rewrite table).
type Ticker = string

// PricePoint is one daily closing price for one ticker.
type PricePoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD, trading day
	Close float64 `json:"close"`
}

// Series is a date-ordered sequence of closing prices for one ticker.
// Dates are strictly increasing; no gaps are synthesized for missing days.
type Series []PricePoint

// PriceTable maps tickers to their price series. Alignment on a shared date
// axis happens structurally when the analysis engine combines series; a date
// present in one series but absent in another yields a missing value there.
type PriceTable map[Ticker]Series

// CorrelationMatrix is a square, symmetric matrix of pairwise Pearson
// correlation coefficients. Values lie in [-1, 1] or are NaN when the
// coefficient is undefined (fewer than two return rows, or zero variance in
// the window). The diagonal is exactly 1.0 whenever it is defined.
type CorrelationMatrix struct {
	Tickers []Ticker    `json:"tickers"`
	Data    [][]float64 `json:"data"`
}

// At returns the coefficient for the pair (i, j).
func (m CorrelationMatrix) At(i, j int) float64 {
	return m.Data[i][j]
}

// Size returns the number of tickers in the matrix.
func (m CorrelationMatrix) Size() int {
	return len(m.Tickers)
}

// MarshalJSON renders NaN coefficients as null so the matrix stays fully
// shaped and renderable. encoding/json rejects NaN outright, and the
// presentation layer must be able to draw a cell for an undefined pair.
func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	data := make([][]*float64, len(m.Data))
	for i, row := range m.Data {
		data[i] = make([]*float64, len(row))
		for j := range row {
			if math.IsNaN(row[j]) {
				continue
			}
			v := row[j]
			data[i][j] = &v
		}
	}

	return json.Marshal(struct {
		Tickers []Ticker     `json:"tickers"`
		Data    [][]*float64 `json:"data"`
	}{
		Tickers: m.Tickers,
		Data:    data,
	})
}

// RankedPair is one distinct unordered ticker pair with its correlation
// coefficient. A != B always; each unordered pair appears at most once in a
// ranking (A-B and B-A carry the same value, only one survives).
type RankedPair struct {
	A           Ticker  `json:"a"`
	B           Ticker  `json:"b"`
	Correlation float64 `json:"correlation"`
}
