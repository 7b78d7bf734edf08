// Package polygon provides the Polygon.io daily-aggregates client.
package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/corrscope/internal/domain"
)

// symbolOverrides maps basket tickers to their API-side symbols where they
// differ. Crypto pairs use Polygon's X: prefix. Default is identity.
var symbolOverrides = map[string]string{
	"BTC-USD": "X:BTCUSD",
}

// resultLimit is Polygon's maximum page size for aggregates. The full date
// range of the dashboard fits in a single page at daily resolution.
const resultLimit = 50000

// FetchError is a transport-level failure for one ticker: non-2xx status,
// network error, or malformed body. It is fatal to the whole batch.
type FetchError struct {
	Ticker string
	Err    error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Ticker, e.Err)
}

// Unwrap returns the underlying cause
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client for the Polygon.io aggregates API
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Polygon.io client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "polygon").Logger(),
	}
}

// APISymbol returns the remote-API symbol for a basket ticker.
func APISymbol(ticker string) string {
	if sym, ok := symbolOverrides[ticker]; ok {
		return sym
	}
	return ticker
}

// aggsResponse mirrors the aggregates endpoint's JSON body. Only the fields
// the engine needs are decoded; OHLC and volume are ignored.
type aggsResponse struct {
	ResultsCount int       `json:"resultsCount"`
	Results      []aggsBar `json:"results"`
	Status       string    `json:"status"`
}

type aggsBar struct {
	Timestamp int64   `json:"t"` // epoch millis, start of the trading day
	Close     float64 `json:"c"`
}

// GetDailyCloses fetches adjusted daily closing prices for one ticker over
// [from, to], ascending by date, in a single request.
//
// Zero records is not an error: the caller gets an empty series and decides
// how to surface the warning. Any transport-level failure is returned as a
// *FetchError carrying the ticker and the underlying cause.
func (c *Client) GetDailyCloses(ctx context.Context, ticker, apiKey, from, to string) (domain.Series, error) {
	symbol := APISymbol(ticker)

	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s",
		c.baseURL, url.PathEscape(symbol), from, to)

	query := url.Values{}
	query.Set("adjusted", "true")
	query.Set("sort", "asc")
	query.Set("limit", fmt.Sprintf("%d", resultLimit))
	query.Set("apiKey", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Ticker: ticker, Err: err}
	}

	c.log.Debug().
		Str("ticker", ticker).
		Str("symbol", symbol).
		Str("from", from).
		Str("to", to).
		Msg("Fetching daily aggregates")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Ticker: ticker, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for operator diagnosis; Polygon returns
		// a JSON error message on quota rejections.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Ticker: ticker,
			Err:    fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var result aggsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &FetchError{Ticker: ticker, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if result.ResultsCount == 0 || len(result.Results) == 0 {
		c.log.Warn().Str("ticker", ticker).Msg("No data found for ticker")
		return domain.Series{}, nil
	}

	series := make(domain.Series, 0, len(result.Results))
	for _, bar := range result.Results {
		series = append(series, domain.PricePoint{
			Date:  time.UnixMilli(bar.Timestamp).UTC().Format("2006-01-02"),
			Close: bar.Close,
		})
	}

	c.log.Info().
		Str("ticker", ticker).
		Int("points", len(series)).
		Msg("Fetched daily closes")

	return series, nil
}
