package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/corrscope/internal/domain"
)

// Correlate computes the pairwise Pearson correlation matrix over the
// trailing window rows of the returns table (all rows if fewer exist).
//
// Degenerate cases never panic: with fewer than two rows every coefficient
// is NaN; a ticker with zero variance in the window yields NaN against every
// other ticker. The diagonal is exactly 1.0 whenever at least two rows
// exist, matching the invariant the ranker and renderer rely on.
func Correlate(rt *ReturnsTable, window int) domain.CorrelationMatrix {
	tail := rt.Tail(window)
	n := len(tail.Tickers)

	matrix := domain.CorrelationMatrix{
		Tickers: append([]domain.Ticker(nil), tail.Tickers...),
		Data:    make([][]float64, n),
	}
	for i := range matrix.Data {
		matrix.Data[i] = make([]float64, n)
	}

	if tail.Len() < 2 {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				matrix.Data[i][j] = math.NaN()
			}
		}
		return matrix
	}

	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		cols[j] = tail.Column(j)
	}

	for i := 0; i < n; i++ {
		matrix.Data[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			// Zero variance in either column gives 0/0 = NaN, which is the
			// required "undefined, not an error" representation.
			r := stat.Correlation(cols[i], cols[j], nil)
			matrix.Data[i][j] = r
			matrix.Data[j][i] = r
		}
	}

	return matrix
}
