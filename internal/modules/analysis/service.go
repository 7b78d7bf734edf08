package analysis

import (
	"github.com/rs/zerolog"

	"github.com/aristath/corrscope/internal/domain"
)

// Result is one full analysis pass over a price table.
type Result struct {
	Window   int                     `json:"window"`    // requested rolling window
	RowsUsed int                     `json:"rows_used"` // actual rows after truncation
	Matrix   domain.CorrelationMatrix `json:"matrix"`
	Most     []domain.RankedPair     `json:"most_correlated"`
	Least    []domain.RankedPair     `json:"least_correlated"`
}

// Service runs the returns -> correlation -> ranking pipeline. It is
// stateless; recomputation from a cached price table is cheap and happens on
// every window change.
type Service struct {
	rankSize int
	log      zerolog.Logger
}

// NewService creates a new analysis service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		rankSize: DefaultRankSize,
		log:      log.With().Str("service", "analysis").Logger(),
	}
}

// Compute builds the aligned returns table, correlates the trailing window,
// and ranks the distinct pairs.
func (s *Service) Compute(table domain.PriceTable, order []domain.Ticker, window int) *Result {
	rt := BuildReturns(table, order)
	tail := rt.Tail(window)
	matrix := Correlate(rt, window)
	most, least := Rank(matrix, s.rankSize)

	s.log.Debug().
		Int("window", window).
		Int("rows_used", tail.Len()).
		Int("tickers", matrix.Size()).
		Msg("Computed correlation matrix")

	return &Result{
		Window:   window,
		RowsUsed: tail.Len(),
		Matrix:   matrix,
		Most:     most,
		Least:    least,
	}
}
