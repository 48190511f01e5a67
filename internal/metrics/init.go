package metrics

// InitializeMetrics pre-populates expected label combinations so that every
// metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"upsert_batch", "upsert_one", "remove",
		"get_by_path", "query", "delete_not_seen", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, op := range []string{"upsert_batch", "upsert_one", "remove", "delete_not_seen"} {
		DBRowsAffected.WithLabelValues(op)
	}

	for _, kind := range []string{"root", "walk", "stat", "store"} {
		ScannerErrors.WithLabelValues(kind)
	}

	for _, kind := range []string{"add", "change", "remove"} {
		WatcherEventsTotal.WithLabelValues(kind)
	}

	for _, status := range []string{"full", "partial", "not_found", "forbidden", "unsatisfiable", "error"} {
		StreamsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, t := range []string{"image", "video"} {
		MediaFilesTotal.WithLabelValues(t)
	}
}
