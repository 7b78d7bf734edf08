package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	Goroutines    int     `json:"goroutines"`
	AllocMB       uint64  `json:"alloc_mb"`
	CachedBatches int     `json:"cached_batches"`
	DBHealthy     bool    `json:"db_healthy"`
}

// handleSystemStatus handles GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := s.systemUsage()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	// Ping only; a full integrity check is too heavy for a dashboard poll.
	dbHealthy := true
	if s.db != nil {
		if err := s.db.QuickCheck(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("Database health check failed")
			dbHealthy = false
		}
	}

	response := SystemStatusResponse{
		Status:        "running",
		UptimeSeconds: int64(time.Since(s.startupTime).Seconds()),
		CPUPercent:    cpuAvg,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		AllocMB:       m.Alloc / 1024 / 1024,
		CachedBatches: s.cache.Len(),
		DBHealthy:     dbHealthy,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// systemUsage samples CPU and RAM utilization. The 100ms CPU sample keeps
// the endpoint fast enough for a 2s dashboard poll.
func (s *Server) systemUsage() (cpuAvg, ramPercent float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
