package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/talisker77/media-viewer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Ready            bool   `json:"ready"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	Scanning         bool   `json:"scanning"`
	LastScan         string `json:"lastScan,omitempty"`
	InitialScanError string `json:"initialScanError,omitempty"`

	// Progress info
	FilesIndexed int64 `json:"filesIndexed"`
	FilesSkipped int64 `json:"filesSkipped"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalFiles  int `json:"totalFiles,omitempty"`
	TotalImages int `json:"totalImages,omitempty"`
	TotalVideos int `json:"totalVideos,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	healthStatus := h.scanner.GetHealthStatus()
	stats := h.db.GetStats()

	response := HealthResponse{
		Ready:        healthStatus.Ready,
		Version:      startup.Version,
		Uptime:       healthStatus.Uptime,
		Scanning:     healthStatus.Scanning,
		FilesIndexed: healthStatus.FilesIndexed,
		FilesSkipped: healthStatus.FilesSkipped,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if !healthStatus.LastScan.IsZero() {
		response.LastScan = healthStatus.LastScan.Format(time.RFC3339)
	}

	if healthStatus.InitialScanError != "" {
		response.InitialScanError = healthStatus.InitialScanError
		response.Status = statusDegraded
	}

	// Include stats if available
	if stats.TotalFiles > 0 {
		response.TotalFiles = stats.TotalFiles
		response.TotalImages = stats.TotalImages
		response.TotalVideos = stats.TotalVideos
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only if not ready at all
	if !healthStatus.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.scanner.IsReady() {
		writeJSONStatus(w, "ready")
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
