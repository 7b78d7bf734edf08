package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/corrscope/internal/clients/polygon"
	"github.com/aristath/corrscope/internal/events"
	"github.com/aristath/corrscope/internal/modules/analysis"
	"github.com/aristath/corrscope/internal/modules/marketdata"
	"github.com/aristath/corrscope/internal/modules/settings"
)

// collectTimeout bounds one batch fetch. The full basket at the free-tier
// gate takes a couple of minutes; the headroom covers retries by the client's
// HTTP transport.
const collectTimeout = 15 * time.Minute

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "corrscope",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// currentAPIKey resolves the active credential: the stored one wins, the
// environment one is the fallback.
func (s *Server) currentAPIKey() (string, error) {
	if s.settings != nil {
		stored, err := s.settings.Get(settings.KeyPolygonAPIKey)
		if err != nil {
			return "", err
		}
		if stored != nil && *stored != "" {
			return *stored, nil
		}
	}
	return s.cfg.PolygonAPIKey, nil
}

// collectBatch returns the (possibly cached) price table for the configured
// basket and date range. Concurrent cold callers share one flight.
func (s *Server) collectBatch(apiKey string) (*marketdata.CachedResult, error) {
	from, to := s.cfg.DateRange()
	key := marketdata.Key(s.cfg.Tickers, from, to, apiKey)

	return s.cache.GetOrCollect(key, func() (*marketdata.Result, error) {
		// Detached from the request context: the flight may be shared with
		// other callers, and one client disconnecting must not abort it.
		ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
		defer cancel()

		return s.collector.Collect(ctx, s.cfg.Tickers, apiKey, from, to)
	})
}

// handleCorrelation handles GET /api/correlation?window=90
func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	apiKey, err := s.currentAPIKey()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to resolve API credential")
		s.writeError(w, http.StatusInternalServerError, "failed to resolve API credential")
		return
	}
	if apiKey == "" {
		s.writeError(w, http.StatusConflict, "no API credential configured; set one via PUT /api/settings/credentials")
		return
	}

	window, err := s.windowParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cached, err := s.collectBatch(apiKey)
	if err != nil {
		s.log.Error().Err(err).Msg("Batch collect failed")

		var fetchErr *polygon.FetchError
		if errors.As(err, &fetchErr) {
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := s.analysis.Compute(cached.Table, s.cfg.Tickers, window)

	s.events.EmitTyped(events.MatrixComputed, "analysis", &events.MatrixComputedData{
		Window:   result.Window,
		RowsUsed: result.RowsUsed,
		Tickers:  result.Matrix.Size(),
	})

	from, to := s.cfg.DateRange()
	s.writeData(w, http.StatusOK, map[string]interface{}{
		"window":           result.Window,
		"rows_used":        result.RowsUsed,
		"matrix":           result.Matrix,
		"most_correlated":  result.Most,
		"least_correlated": result.Least,
		"warnings":         cached.Warnings,
		"range":            map[string]string{"from": from, "to": to},
		"fetched_at":       cached.FetchedAt.Format(time.RFC3339),
	})
}

// handleCorrelationPair handles GET /api/correlation/pair?a=SPY&b=GLD&window=90
func (s *Server) handleCorrelationPair(w http.ResponseWriter, r *http.Request) {
	a := strings.TrimSpace(r.URL.Query().Get("a"))
	b := strings.TrimSpace(r.URL.Query().Get("b"))
	if a == "" || b == "" {
		s.writeError(w, http.StatusBadRequest, "both 'a' and 'b' ticker parameters are required")
		return
	}

	apiKey, err := s.currentAPIKey()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to resolve API credential")
		s.writeError(w, http.StatusInternalServerError, "failed to resolve API credential")
		return
	}
	if apiKey == "" {
		s.writeError(w, http.StatusConflict, "no API credential configured; set one via PUT /api/settings/credentials")
		return
	}

	window, err := s.windowParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cached, err := s.collectBatch(apiKey)
	if err != nil {
		s.log.Error().Err(err).Msg("Batch collect failed")

		var fetchErr *polygon.FetchError
		if errors.As(err, &fetchErr) {
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	points, err := analysis.RollingPair(cached.Table, a, b, window)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeData(w, http.StatusOK, map[string]interface{}{
		"a":      a,
		"b":      b,
		"window": window,
		"points": points,
	})
}

// handleTickers handles GET /api/tickers
func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	type tickerInfo struct {
		Ticker    string `json:"ticker"`
		APISymbol string `json:"api_symbol"`
	}

	tickers := make([]tickerInfo, 0, len(s.cfg.Tickers))
	for _, t := range s.cfg.Tickers {
		tickers = append(tickers, tickerInfo{
			Ticker:    t,
			APISymbol: polygon.APISymbol(t),
		})
	}

	s.writeData(w, http.StatusOK, map[string]interface{}{
		"tickers": tickers,
	})
}

// handleGetCredentials handles GET /api/settings/credentials.
// The credential itself never leaves the server; only its presence does.
func (s *Server) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	stored, err := s.settings.Get(settings.KeyPolygonAPIKey)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read stored credential")
		s.writeError(w, http.StatusInternalServerError, "failed to read stored credential")
		return
	}

	source := "none"
	active := ""
	switch {
	case stored != nil && *stored != "":
		source = "settings"
		active = *stored
	case s.cfg.PolygonAPIKey != "":
		source = "environment"
		active = s.cfg.PolygonAPIKey
	}

	s.writeData(w, http.StatusOK, map[string]interface{}{
		"configured": active != "",
		"source":     source,
		"hint":       maskCredential(active),
	})
}

// maskCredential keeps only the last four characters of a credential so the
// operator can tell which key is active without the key ever leaving the
// server.
func maskCredential(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 4) + key[len(key)-4:]
}

// credentialsRequest is the PUT /api/settings/credentials body
type credentialsRequest struct {
	APIKey string `json:"api_key"`
}

// handlePutCredentials handles PUT /api/settings/credentials
func (s *Server) handlePutCredentials(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req credentialsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.APIKey = strings.TrimSpace(req.APIKey)
	if req.APIKey == "" {
		if err := s.settings.Delete(settings.KeyPolygonAPIKey); err != nil {
			s.log.Error().Err(err).Msg("Failed to delete stored credential")
			s.writeError(w, http.StatusInternalServerError, "failed to delete stored credential")
			return
		}
	} else {
		if err := s.settings.Set(settings.KeyPolygonAPIKey, req.APIKey); err != nil {
			s.log.Error().Err(err).Msg("Failed to store credential")
			s.writeError(w, http.StatusInternalServerError, "failed to store credential")
			return
		}
	}

	// A credential swap changes the cache key space; stale batches fetched
	// under the old key are unreachable anyway, so drop them.
	s.cache.Clear()

	s.events.EmitTyped(events.SettingsChanged, "settings", &events.SettingsChangedData{
		Key: settings.KeyPolygonAPIKey,
	})

	s.writeData(w, http.StatusOK, map[string]interface{}{
		"configured": req.APIKey != "",
	})
}

// handleCacheClear handles POST /api/cache/clear
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	removed := s.cache.Clear()

	s.events.EmitTyped(events.CacheCleared, "marketdata", &events.CacheClearedData{
		Removed: removed,
	})

	s.writeData(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
	})
}

// windowParam parses and clamps the optional window query parameter.
func (s *Server) windowParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("window"))
	if raw == "" {
		return s.cfg.WindowDefault, nil
	}

	window, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("window must be an integer")
	}

	return s.cfg.ClampWindow(window), nil
}

// writeData writes a payload in the standard data/metadata envelope
func (s *Server) writeData(w http.ResponseWriter, status int, data interface{}) {
	s.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
