package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_viewer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Index store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_db_queries_total",
			Help: "Total number of index store operations",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_viewer_db_query_duration_seconds",
			Help:    "Index store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_viewer_db_transaction_duration_seconds",
			Help:    "Index store transaction duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_viewer_db_rows_affected",
			Help:    "Rows affected by index store write operations",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_viewer_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_scanner_runs_total",
			Help: "Total number of scanner runs",
		},
	)

	ScannerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_scanner_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)

	ScannerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_scanner_last_run_timestamp",
			Help: "Timestamp of the last completed scan",
		},
	)

	ScannerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_scanner_last_run_duration_seconds",
			Help: "Duration of the last completed scan in seconds",
		},
	)

	ScannerFilesIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_scanner_files_indexed_total",
			Help: "Total number of files indexed by the scanner",
		},
	)

	ScannerFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_scanner_files_skipped_total",
			Help: "Total number of files skipped by the scanner (unrecognized extension)",
		},
	)

	ScannerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_scanner_errors_total",
			Help: "Total number of scanner errors by kind",
		},
		[]string{"kind"}, // "root", "walk", "stat", "store"
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_watcher_events_total",
			Help: "Total number of filesystem change events by kind",
		},
		[]string{"kind"}, // "add", "change", "remove"
	)

	WatcherEventErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_watcher_event_errors_total",
			Help: "Total number of events dropped due to processing errors",
		},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_watcher_errors_total",
			Help: "Total number of watcher subsystem errors",
		},
	)

	WatcherDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_watcher_directories",
			Help: "Number of directories currently being watched",
		},
	)

	WatcherQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_watcher_queue_depth",
			Help: "Number of change events waiting to be applied",
		},
	)
)

// Metadata resolver metrics. Sidecar absence is a normal outcome and is
// tallied apart from hard read errors.
var (
	MetadataSidecarsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_metadata_sidecars_loaded_total",
			Help: "Total number of sidecar descriptors successfully loaded",
		},
	)

	MetadataSidecarsMissing = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_metadata_sidecars_missing_total",
			Help: "Total number of media files with no sidecar descriptor",
		},
	)

	MetadataSidecarsInvalid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_metadata_sidecars_invalid_total",
			Help: "Total number of sidecar descriptors that failed to parse",
		},
	)

	MetadataSidecarErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_metadata_sidecar_errors_total",
			Help: "Total number of hard I/O errors reading sidecar descriptors",
		},
	)
)

// Streaming metrics
var (
	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_streams_total",
			Help: "Total number of file streaming responses by status",
		},
		[]string{"status"}, // "full", "partial", "not_found", "forbidden", "unsatisfiable", "error"
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_streams_active",
			Help: "Number of file streams currently in progress",
		},
	)

	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_stream_bytes_total",
			Help: "Total number of bytes streamed to clients",
		},
	)

	StreamClientDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_stream_client_disconnects_total",
			Help: "Total number of streams aborted by client disconnect",
		},
	)
)

// Filesystem retry metrics (stale-handle resilience on network mounts)
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_fs_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_fs_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_fs_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_fs_stale_errors_total",
			Help: "Total number of stale file handle errors observed",
		},
		[]string{"operation"},
	)
)

// Index content metrics
var (
	MediaFilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_viewer_media_files_total",
			Help: "Number of entries currently in the index by type",
		},
		[]string{"type"}, // "image", "video"
	)
)
