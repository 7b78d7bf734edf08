package analysis

import (
	"math"
	"sort"

	"github.com/aristath/corrscope/internal/domain"
)

// DefaultRankSize is how many pairs each ranked list carries.
const DefaultRankSize = 5

// Rank flattens a correlation matrix into its most- and least-correlated
// distinct pairs.
//
// The diagonal is excluded by position (i < j), not by value: a genuinely
// perfectly-correlated distinct pair stays rankable. Each unordered pair
// appears exactly once. Pairs with an undefined (NaN) coefficient are left
// out of both lists; they remain visible in the matrix itself.
//
// Both lists come from one descending sort: most is its head, least its
// tail (still in descending order). With fewer than 2*size pairs the lists
// may overlap, mirroring a head/tail view of the same short series.
func Rank(matrix domain.CorrelationMatrix, size int) (most, least []domain.RankedPair) {
	if size <= 0 {
		size = DefaultRankSize
	}

	var pairs []domain.RankedPair
	for i := 0; i < matrix.Size(); i++ {
		for j := i + 1; j < matrix.Size(); j++ {
			r := matrix.At(i, j)
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, domain.RankedPair{
				A:           matrix.Tickers[i],
				B:           matrix.Tickers[j],
				Correlation: r,
			})
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].Correlation != pairs[b].Correlation {
			return pairs[a].Correlation > pairs[b].Correlation
		}
		// Deterministic order for ties.
		if pairs[a].A != pairs[b].A {
			return pairs[a].A < pairs[b].A
		}
		return pairs[a].B < pairs[b].B
	})

	if len(pairs) == 0 {
		return nil, nil
	}

	headLen := size
	if headLen > len(pairs) {
		headLen = len(pairs)
	}
	tailLen := size
	if tailLen > len(pairs) {
		tailLen = len(pairs)
	}

	most = append([]domain.RankedPair(nil), pairs[:headLen]...)
	least = append([]domain.RankedPair(nil), pairs[len(pairs)-tailLen:]...)
	return most, least
}
