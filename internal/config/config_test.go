package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CORRSCOPE_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultTickers, cfg.Tickers)
	assert.Equal(t, "2020-01-01", cfg.FetchStart)
	assert.Equal(t, "", cfg.FetchEnd)
	assert.Equal(t, 13*time.Second, cfg.FetchDelay)
	assert.Equal(t, 90, cfg.WindowDefault)
	assert.Equal(t, 30, cfg.WindowMin)
	assert.Equal(t, 365, cfg.WindowMax)
	assert.False(t, cfg.PrefetchEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CORRSCOPE_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9001")
	t.Setenv("TICKERS", "SPY, GLD ,BTC-USD")
	t.Setenv("FETCH_DELAY_SECONDS", "0")
	t.Setenv("FETCH_END", "2025-09-19")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, []string{"SPY", "GLD", "BTC-USD"}, cfg.Tickers)
	assert.Equal(t, time.Duration(0), cfg.FetchDelay)

	from, to := cfg.DateRange()
	assert.Equal(t, "2020-01-01", from)
	assert.Equal(t, "2025-09-19", to)
}

func TestLoad_InvalidFetchStart(t *testing.T) {
	t.Setenv("CORRSCOPE_DATA_DIR", t.TempDir())
	t.Setenv("FETCH_START", "not-a-date")

	_, err := Load()
	require.Error(t, err)
}

func TestDateRange_EmptyEndMeansToday(t *testing.T) {
	cfg := &Config{FetchStart: "2020-01-01"}

	from, to := cfg.DateRange()
	assert.Equal(t, "2020-01-01", from)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), to)
}

func TestClampWindow(t *testing.T) {
	cfg := &Config{WindowDefault: 90, WindowMin: 30, WindowMax: 365, WindowStep: 10}

	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero uses default", 0, 90},
		{"below min clamps up", 5, 30},
		{"above max clamps down", 1000, 30 + ((365-30)/10)*10},
		{"snaps down to step", 97, 90},
		{"exact step kept", 120, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ClampWindow(tt.in))
		})
	}
}
