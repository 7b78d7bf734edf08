package analysis

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/aristath/corrscope/internal/domain"
)

// RollingPoint is one observation of a pair's rolling correlation.
type RollingPoint struct {
	Date        string  `json:"date"`
	Correlation float64 `json:"correlation"`
}

// RollingPair computes the rolling Pearson correlation between two tickers'
// returns, one point per aligned return date once the window is full. The
// dashboard uses this for pair sparklines next to the heatmap.
func RollingPair(table domain.PriceTable, a, b domain.Ticker, window int) ([]RollingPoint, error) {
	if a == b {
		return nil, fmt.Errorf("pair must be two distinct tickers")
	}
	if _, ok := table[a]; !ok {
		return nil, fmt.Errorf("unknown ticker: %s", a)
	}
	if _, ok := table[b]; !ok {
		return nil, fmt.Errorf("unknown ticker: %s", b)
	}
	if window < 2 {
		return nil, fmt.Errorf("window must be at least 2, got %d", window)
	}

	pair := domain.PriceTable{a: table[a], b: table[b]}
	rt := BuildReturns(pair, []domain.Ticker{a, b})

	if rt.Len() < window {
		return nil, fmt.Errorf("not enough aligned returns for window %d (have %d)", window, rt.Len())
	}

	correl := talib.Correl(rt.Column(0), rt.Column(1), window)

	// talib pads the warm-up period; points start once the window is full.
	points := make([]RollingPoint, 0, rt.Len()-window+1)
	for i := window - 1; i < rt.Len(); i++ {
		points = append(points, RollingPoint{
			Date:        rt.Dates[i],
			Correlation: correl[i],
		})
	}

	return points, nil
}
