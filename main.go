package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talisker77/media-viewer/internal/database"
	"github.com/talisker77/media-viewer/internal/handlers"
	"github.com/talisker77/media-viewer/internal/logging"
	"github.com/talisker77/media-viewer/internal/mediatypes"
	"github.com/talisker77/media-viewer/internal/metadata"
	"github.com/talisker77/media-viewer/internal/metrics"
	"github.com/talisker77/media-viewer/internal/middleware"
	"github.com/talisker77/media-viewer/internal/scanner"
	"github.com/talisker77/media-viewer/internal/startup"
	"github.com/talisker77/media-viewer/internal/watcher"
)

// statsAdapter exposes index stats to the metrics collector.
type statsAdapter struct {
	db *database.Database
}

func (a statsAdapter) GetStats() metrics.Stats {
	s := a.db.GetStats()
	return metrics.Stats{
		TotalFiles:   s.TotalFiles,
		TotalImages:  s.TotalImages,
		TotalVideos:  s.TotalVideos,
		WithLocation: s.WithLocation,
	}
}

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	types := mediatypes.NewRegistry(config.ImageExtensions, config.VideoExtensions)
	resolver := metadata.NewResolver()

	// Initialize scanner
	startup.LogScannerInit(config.ScanInterval)
	sc := scanner.New(db, config.MediaDirs, types, resolver, config.ScanInterval)

	// The watcher needs an index to apply events against, so it starts
	// only after the first scan completes. The handoff is guarded: the
	// scan callback runs on the scanner's goroutine and shutdown reads
	// from another.
	var (
		watcherOnce sync.Once
		watcherMu   sync.Mutex
		fsWatcher   *watcher.Watcher
	)
	getWatcher := func() *watcher.Watcher {
		watcherMu.Lock()
		defer watcherMu.Unlock()
		return fsWatcher
	}
	sc.SetOnScanComplete(func() {
		watcherOnce.Do(func() {
			w, err := watcher.New(db, config.MediaDirs, types, resolver)
			if err != nil {
				logging.Error("Failed to create filesystem watcher: %v", err)
				return
			}
			if err := w.Start(); err != nil {
				logging.Error("Failed to start filesystem watcher: %v", err)
				return
			}
			watcherMu.Lock()
			fsWatcher = w
			watcherMu.Unlock()
			logging.Info("Filesystem watcher started")
		})
	})

	sc.Start()
	startup.LogScannerStarted()

	// Initialize handlers
	h := handlers.New(db, sc, config)

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Middleware chain: request ID, then access logging, then metrics
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.RequestID(
		middleware.Logger(loggingConfig)(
			middleware.Metrics(middleware.DefaultMetricsConfig())(router)))

	// Metrics server on its own port
	var collector *metrics.Collector
	if config.MetricsEnabled {
		metrics.InitializeMetrics()

		collector = metrics.NewCollector(statsAdapter{db: db}, config.DatabasePath, 30*time.Second)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		go func() {
			logging.Info("Metrics server listening on :%s", config.MetricsPort)
			if err := http.ListenAndServe(":"+config.MetricsPort, metricsMux); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// WriteTimeout stays 0: long video streams outlive any fixed server
	// timeout, the streaming writer enforces its own.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, sc, getWatcher, collector)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// File paths arrive percent-encoded; decoding happens in the handler
	// after route matching.
	r.UseEncodedPath()

	// Health check routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(httprate.LimitByIP(300, time.Minute))
	api.HandleFunc("/media", h.ListMedia).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/reindex", h.TriggerReindex).Methods("POST")

	// File streaming
	r.HandleFunc("/media/file/{path:.*}", h.StreamFile).Methods("GET")

	return r
}

func handleShutdown(srv *http.Server, sc *scanner.Scanner, getWatcher func() *watcher.Watcher, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping scanner")
	sc.Stop()
	startup.LogShutdownStepComplete("Scanner stopped")

	if w := getWatcher(); w != nil {
		startup.LogShutdownStep("Stopping filesystem watcher")
		w.Stop()
		startup.LogShutdownStepComplete("Filesystem watcher stopped")
	}

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
