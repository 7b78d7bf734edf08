package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/corrscope/internal/clients/polygon"
	"github.com/aristath/corrscope/internal/config"
	"github.com/aristath/corrscope/internal/events"
	"github.com/aristath/corrscope/internal/modules/analysis"
	"github.com/aristath/corrscope/internal/modules/marketdata"
	"github.com/aristath/corrscope/internal/modules/settings"
	"github.com/aristath/corrscope/internal/ratelimit"
)

type testEnv struct {
	server *Server
}

// newPolygonStub serves deterministic daily aggregates for any symbol. Each
// symbol gets a distinct but correlated price path so the matrix is fully
// defined.
func newPolygonStub(t *testing.T, requests *int64, fail bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(requests, 1)

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"status":"ERROR"}`)
			return
		}

		// Eight trading days starting 2024-01-01; per-symbol offset from the
		// path keeps series distinct without making returns constant.
		offset := float64(len(r.URL.Path) % 7)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		closes := []float64{100, 104, 101, 107, 103, 111, 108, 115}

		type bar struct {
			T int64   `json:"t"`
			C float64 `json:"c"`
		}
		bars := make([]bar, len(closes))
		for i, c := range closes {
			bars[i] = bar{
				T: base.AddDate(0, 0, i).UnixMilli(),
				C: c + offset,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"resultsCount": len(bars),
			"results":      bars,
		})
	}))
}

func newTestEnv(t *testing.T, polygonURL string) *testEnv {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)

	settingsRepo := settings.NewRepository(db, log)

	cfg := &config.Config{
		Port:           0,
		PolygonBaseURL: polygonURL,
		Tickers:        []string{"SPY", "GLD"},
		FetchStart:     "2024-01-01",
		FetchEnd:       "2024-01-08",
		WindowDefault:  5,
		WindowMin:      2,
		WindowMax:      10,
		WindowStep:     1,
	}

	bus := events.NewBus()
	manager := events.NewManager(bus, log)
	client := polygon.NewClient(polygonURL, log)
	collector := marketdata.NewCollector(client, ratelimit.Noop{}, manager, log)
	cache := marketdata.NewCache(log)

	env := &testEnv{}
	env.server = New(Config{
		Port:      cfg.Port,
		Log:       log,
		Config:    cfg,
		DevMode:   true,
		Cache:     cache,
		Collector: collector,
		Analysis:  analysis.NewService(log),
		Settings:  settingsRepo,
		Bus:       bus,
		Events:    manager,
	})

	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.server.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
	return envelope.Data
}

func TestHealth(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	rec := env.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCorrelationNoCredential(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	rec := env.do(t, http.MethodGet, "/api/correlation", nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "credential")
}

func TestCorrelationHappyPathAndCaching(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	env.server.cfg.PolygonAPIKey = "test-key"

	rec := env.do(t, http.MethodGet, "/api/correlation?window=5", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	assert.Equal(t, float64(5), data["window"])

	matrix, ok := data["matrix"].(map[string]interface{})
	require.True(t, ok)
	tickers, ok := matrix["tickers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tickers, 2)

	fetched := atomic.LoadInt64(&requests)
	assert.Equal(t, int64(2), fetched)

	// Second request with a different window reuses the cached batch.
	rec = env.do(t, http.MethodGet, "/api/correlation?window=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fetched, atomic.LoadInt64(&requests))
}

func TestCorrelationWindowClamped(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	env.server.cfg.PolygonAPIKey = "test-key"

	rec := env.do(t, http.MethodGet, "/api/correlation?window=9999", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, float64(10), data["window"])
}

func TestCorrelationInvalidWindow(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	env.server.cfg.PolygonAPIKey = "test-key"

	rec := env.do(t, http.MethodGet, "/api/correlation?window=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrelationUpstreamFailure(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, true)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	env.server.cfg.PolygonAPIKey = "test-key"

	rec := env.do(t, http.MethodGet, "/api/correlation", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	// The failed batch must not be cached.
	assert.Zero(t, env.server.cache.Len())
}

func TestCorrelationPair(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	env.server.cfg.PolygonAPIKey = "test-key"

	rec := env.do(t, http.MethodGet, "/api/correlation/pair?a=SPY&b=GLD&window=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	points, ok := data["points"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, points)

	// Missing parameter is a client error.
	rec = env.do(t, http.MethodGet, "/api/correlation/pair?a=SPY", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown ticker is a client error, not an upstream one.
	rec = env.do(t, http.MethodGet, "/api/correlation/pair?a=SPY&b=ZZZ&window=3", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTickers(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	env.server.cfg.Tickers = []string{"SPY", "BTC-USD"}

	rec := env.do(t, http.MethodGet, "/api/tickers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Body.String(), `"X:BTCUSD"`)
	assert.Contains(t, rec.Body.String(), `"SPY"`)
}

func TestCredentialsRoundTrip(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)

	// Nothing configured yet.
	rec := env.do(t, http.MethodGet, "/api/settings/credentials", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, false, data["configured"])
	assert.Equal(t, "none", data["source"])

	// Store a credential; the raw key never appears in responses.
	body := []byte(`{"api_key": "super-secret"}`)
	rec = env.do(t, http.MethodPut, "/api/settings/credentials", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "super-secret")

	rec = env.do(t, http.MethodGet, "/api/settings/credentials", nil)
	data = decodeData(t, rec)
	assert.Equal(t, true, data["configured"])
	assert.Equal(t, "settings", data["source"])
	assert.Equal(t, "****cret", data["hint"])
	assert.NotContains(t, rec.Body.String(), "super-secret")

	// Clearing falls back to the (empty) environment credential.
	rec = env.do(t, http.MethodPut, "/api/settings/credentials", []byte(`{"api_key": ""}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/settings/credentials", nil)
	data = decodeData(t, rec)
	assert.Equal(t, false, data["configured"])
}

func TestPutCredentialsInvalidBody(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)

	rec := env.do(t, http.MethodPut, "/api/settings/credentials", []byte(`{not json`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheClear(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	env.server.cfg.PolygonAPIKey = "test-key"

	rec := env.do(t, http.MethodGet, "/api/correlation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, env.server.cache.Len())

	rec = env.do(t, http.MethodPost, "/api/cache/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, float64(1), data["removed"])
	assert.Zero(t, env.server.cache.Len())
}

func TestCredentialChangeInvalidatesCache(t *testing.T) {
	var requests int64
	stub := newPolygonStub(t, &requests, false)
	defer stub.Close()

	env := newTestEnv(t, stub.URL)
	env.server.cfg.PolygonAPIKey = "test-key"

	rec := env.do(t, http.MethodGet, "/api/correlation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, env.server.cache.Len())

	rec = env.do(t, http.MethodPut, "/api/settings/credentials", []byte(`{"api_key": "rotated"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.server.cache.Len())
}
