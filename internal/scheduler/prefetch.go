package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/corrscope/internal/config"
	"github.com/aristath/corrscope/internal/modules/marketdata"
	"github.com/aristath/corrscope/internal/modules/settings"
)

// PrefetchJob warms the price cache ahead of dashboard traffic. The cache
// key includes the date range, and an open-ended range moves forward each
// day, so a morning warm run pays the serial fetch cost before the first
// request does.
type PrefetchJob struct {
	cfg       *config.Config
	cache     *marketdata.Cache
	collector *marketdata.Collector
	settings  *settings.Repository
	log       zerolog.Logger
}

// NewPrefetchJob creates the daily cache warm job.
func NewPrefetchJob(
	cfg *config.Config,
	cache *marketdata.Cache,
	collector *marketdata.Collector,
	settingsRepo *settings.Repository,
	log zerolog.Logger,
) *PrefetchJob {
	return &PrefetchJob{
		cfg:       cfg,
		cache:     cache,
		collector: collector,
		settings:  settingsRepo,
		log:       log.With().Str("job", "prefetch").Logger(),
	}
}

// Name implements Job.
func (j *PrefetchJob) Name() string {
	return "cache-prefetch"
}

// Run implements Job. It fetches the full basket through the cache so a
// concurrent dashboard request joins the same flight instead of starting a
// second serial fetch.
func (j *PrefetchJob) Run() error {
	apiKey, err := j.currentAPIKey()
	if err != nil {
		return err
	}
	if apiKey == "" {
		j.log.Warn().Msg("No API credential configured, skipping prefetch")
		return nil
	}

	from, to := j.cfg.DateRange()
	key := marketdata.Key(j.cfg.Tickers, from, to, apiKey)

	// The full basket at a 13s gate takes a couple of minutes; give the
	// flight generous headroom.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	result, err := j.cache.GetOrCollect(key, func() (*marketdata.Result, error) {
		return j.collector.Collect(ctx, j.cfg.Tickers, apiKey, from, to)
	})
	if err != nil {
		return fmt.Errorf("prefetch collect failed: %w", err)
	}

	j.log.Info().
		Int("tickers", len(result.Table)).
		Int("warnings", len(result.Warnings)).
		Str("from", from).
		Str("to", to).
		Msg("Cache warmed")

	return nil
}

// currentAPIKey prefers the stored credential over the environment one, the
// same precedence the request path uses.
func (j *PrefetchJob) currentAPIKey() (string, error) {
	if j.settings != nil {
		stored, err := j.settings.Get(settings.KeyPolygonAPIKey)
		if err != nil {
			return "", fmt.Errorf("failed to read stored credential: %w", err)
		}
		if stored != nil && *stored != "" {
			return *stored, nil
		}
	}
	return j.cfg.PolygonAPIKey, nil
}
