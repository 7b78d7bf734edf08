package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/corrscope/internal/domain"
)

func series(points ...domain.PricePoint) domain.Series {
	return domain.Series(points)
}

func p(date string, close float64) domain.PricePoint {
	return domain.PricePoint{Date: date, Close: close}
}

func TestBuildReturnsBasic(t *testing.T) {
	table := domain.PriceTable{
		"AAA": series(p("2024-01-01", 100), p("2024-01-02", 110), p("2024-01-03", 121)),
		"BBB": series(p("2024-01-01", 50), p("2024-01-02", 45), p("2024-01-03", 40.5)),
	}

	rt := BuildReturns(table, []domain.Ticker{"AAA", "BBB"})

	require.Equal(t, []domain.Ticker{"AAA", "BBB"}, rt.Tickers)
	require.Equal(t, []string{"2024-01-02", "2024-01-03"}, rt.Dates)
	require.Equal(t, 2, rt.Len())

	assert.InDelta(t, 0.10, rt.Rows[0][0], 1e-12)
	assert.InDelta(t, 0.10, rt.Rows[1][0], 1e-12)
	assert.InDelta(t, -0.10, rt.Rows[0][1], 1e-12)
	assert.InDelta(t, -0.10, rt.Rows[1][1], 1e-12)
}

func TestBuildReturnsDropsRowsWithGaps(t *testing.T) {
	// BBB has no close on 2024-01-02, so both the 01-02 and 01-03 rows are
	// incomplete (01-03 needs the previous axis day for every ticker).
	table := domain.PriceTable{
		"AAA": series(p("2024-01-01", 100), p("2024-01-02", 110), p("2024-01-03", 121), p("2024-01-04", 133.1)),
		"BBB": series(p("2024-01-01", 50), p("2024-01-03", 40.5), p("2024-01-04", 44.55)),
	}

	rt := BuildReturns(table, []domain.Ticker{"AAA", "BBB"})

	require.Equal(t, []string{"2024-01-04"}, rt.Dates)
	assert.InDelta(t, 0.10, rt.Rows[0][0], 1e-12)
	assert.InDelta(t, 0.10, rt.Rows[0][1], 1e-12)
}

func TestBuildReturnsNonOverlappingSeries(t *testing.T) {
	table := domain.PriceTable{
		"AAA": series(p("2024-01-01", 100), p("2024-01-02", 110)),
		"BBB": series(p("2024-02-01", 50), p("2024-02-02", 55)),
	}

	rt := BuildReturns(table, []domain.Ticker{"AAA", "BBB"})
	assert.Zero(t, rt.Len())
}

func TestBuildReturnsZeroPreviousClose(t *testing.T) {
	table := domain.PriceTable{
		"AAA": series(p("2024-01-01", 0), p("2024-01-02", 110), p("2024-01-03", 121)),
	}

	rt := BuildReturns(table, []domain.Ticker{"AAA"})

	require.Equal(t, []string{"2024-01-03"}, rt.Dates)
	assert.InDelta(t, 0.10, rt.Rows[0][0], 1e-12)
}

func TestBuildReturnsColumnOrder(t *testing.T) {
	table := domain.PriceTable{
		"CCC": series(p("2024-01-01", 1), p("2024-01-02", 2)),
		"AAA": series(p("2024-01-01", 1), p("2024-01-02", 2)),
		"BBB": series(p("2024-01-01", 1), p("2024-01-02", 2)),
	}

	// Preferred order wins for named tickers; the rest come alphabetically.
	rt := BuildReturns(table, []domain.Ticker{"CCC", "ZZZ"})
	assert.Equal(t, []domain.Ticker{"CCC", "AAA", "BBB"}, rt.Tickers)
}

func TestBuildReturnsEmptyTable(t *testing.T) {
	rt := BuildReturns(domain.PriceTable{}, nil)
	assert.Empty(t, rt.Tickers)
	assert.Zero(t, rt.Len())
}

func TestTail(t *testing.T) {
	table := domain.PriceTable{
		"AAA": series(p("2024-01-01", 100), p("2024-01-02", 101), p("2024-01-03", 102), p("2024-01-04", 103)),
	}
	rt := BuildReturns(table, []domain.Ticker{"AAA"})
	require.Equal(t, 3, rt.Len())

	tail := rt.Tail(2)
	require.Equal(t, 2, tail.Len())
	assert.Equal(t, []string{"2024-01-03", "2024-01-04"}, tail.Dates)

	// Oversized window keeps everything.
	assert.Equal(t, 3, rt.Tail(10).Len())
}
