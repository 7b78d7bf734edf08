// Package marketdata orchestrates throttled series fetching and caching for
// the asset basket.
package marketdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/corrscope/internal/clients/polygon"
	"github.com/aristath/corrscope/internal/domain"
	"github.com/aristath/corrscope/internal/events"
	"github.com/aristath/corrscope/internal/ratelimit"
)

// Fetcher retrieves one ticker's daily close series.
// Satisfied by *polygon.Client; tests substitute fakes.
type Fetcher interface {
	GetDailyCloses(ctx context.Context, ticker, apiKey, from, to string) (domain.Series, error)
}

// EventEmitter is the progress-reporting surface the collector publishes to.
// The rendering layer subscribes to the bus; the collector never touches UI
// state directly.
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// Result is one completed batch: the price table plus the tickers that came
// back empty and were omitted from it.
type Result struct {
	Table    domain.PriceTable
	Warnings []string // tickers with zero records, excluded from Table
}

// Collector fetches the whole basket, strictly serially, gated by the rate
// limiter after every fetch. The first transport failure aborts the batch
// and discards all partial results: a degraded dashboard with silently
// missing assets is worse than a clear failure.
type Collector struct {
	fetcher Fetcher
	limiter ratelimit.Limiter
	emitter EventEmitter
	log     zerolog.Logger
}

// NewCollector creates a new batch collector.
func NewCollector(fetcher Fetcher, limiter ratelimit.Limiter, emitter EventEmitter, log zerolog.Logger) *Collector {
	return &Collector{
		fetcher: fetcher,
		limiter: limiter,
		emitter: emitter,
		log:     log.With().Str("service", "collector").Logger(),
	}
}

// Collect fetches daily closes for every ticker in basket order.
//
// Per ticker: fetch, then rate-limit gate, regardless of success or the
// empty-result case. Empty tickers are omitted with a warning and the batch
// continues. On the first *polygon.FetchError the batch aborts and the error
// is returned; no partial table survives.
func (c *Collector) Collect(ctx context.Context, tickers []string, apiKey, from, to string) (*Result, error) {
	runID := uuid.NewString()

	c.emitter.EmitTyped(events.FetchStarted, "marketdata", &events.FetchStartedData{
		RunID:   runID,
		Tickers: tickers,
		From:    from,
		To:      to,
	})

	table := make(domain.PriceTable, len(tickers))
	var warnings []string

	for i, ticker := range tickers {
		series, err := c.fetcher.GetDailyCloses(ctx, ticker, apiKey, from, to)
		if err != nil {
			c.log.Error().Err(err).Str("ticker", ticker).Msg("Batch fetch aborted")
			c.emitter.EmitTyped(events.FetchFailed, "marketdata", &events.FetchFailedData{
				RunID:  runID,
				Ticker: ticker,
				Error:  err.Error(),
			})

			var fetchErr *polygon.FetchError
			if errors.As(err, &fetchErr) {
				return nil, err
			}
			return nil, fmt.Errorf("fetch %s: %w", ticker, err)
		}

		if len(series) == 0 {
			c.log.Warn().Str("ticker", ticker).Msg("No data for ticker, excluding from table")
			warnings = append(warnings, ticker)
			c.emitter.EmitTyped(events.TickerEmpty, "marketdata", &events.TickerEmptyData{
				RunID:  runID,
				Ticker: ticker,
			})
		} else {
			table[ticker] = series
			c.emitter.EmitTyped(events.TickerFetched, "marketdata", &events.TickerFetchedData{
				RunID:     runID,
				Ticker:    ticker,
				Points:    len(series),
				Position:  i + 1,
				BasketLen: len(tickers),
			})
		}

		// Gate after every fetch, including the last and the empty ones.
		// The remote quota counts requests, not successes.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter interrupted: %w", err)
		}
	}

	c.emitter.EmitTyped(events.FetchCompleted, "marketdata", &events.FetchCompletedData{
		RunID:    runID,
		Tickers:  len(table),
		Warnings: warnings,
	})

	c.log.Info().
		Int("tickers", len(table)).
		Int("empty", len(warnings)).
		Msg("Batch collect completed")

	return &Result{Table: table, Warnings: warnings}, nil
}
