package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talisker77/media-viewer/internal/database"
	"github.com/talisker77/media-viewer/internal/filesystem"
	"github.com/talisker77/media-viewer/internal/logging"
	"github.com/talisker77/media-viewer/internal/mediatypes"
	"github.com/talisker77/media-viewer/internal/metadata"
	"github.com/talisker77/media-viewer/internal/metrics"
	"github.com/talisker77/media-viewer/internal/workers"
)

// Cap on concurrent root walks; more workers than this just thrash NFS.
const maxWalkWorkers = 8

// Scanner keeps the index in sync with the media roots.
type Scanner struct {
	db           *database.Database
	roots        []string
	types        *mediatypes.Registry
	resolver     *metadata.Resolver
	scanInterval time.Duration
	stopChan     chan struct{}
	startTime    time.Time

	scanMu              sync.Mutex
	isScanning          bool
	initialScanComplete bool
	initialScanError    error
	lastScanTime        time.Time

	filesIndexed atomic.Int64
	filesSkipped atomic.Int64

	// Callback when a scan completes, used to start the watcher once the
	// initial index exists.
	onScanComplete func()
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready            bool      `json:"ready"`
	Scanning         bool      `json:"scanning"`
	StartTime        time.Time `json:"startTime"`
	Uptime           string    `json:"uptime"`
	LastScan         time.Time `json:"lastScan,omitempty"`
	FilesIndexed     int64     `json:"filesIndexed"`
	FilesSkipped     int64     `json:"filesSkipped"`
	InitialScanError string    `json:"initialScanError,omitempty"`
}

// New creates a Scanner over the given media roots.
func New(db *database.Database, roots []string, types *mediatypes.Registry, resolver *metadata.Resolver, scanInterval time.Duration) *Scanner {
	return &Scanner{
		db:           db,
		roots:        roots,
		types:        types,
		resolver:     resolver,
		scanInterval: scanInterval,
		stopChan:     make(chan struct{}),
		startTime:    time.Now(),
	}
}

// SetOnScanComplete sets a callback invoked after each completed scan.
func (s *Scanner) SetOnScanComplete(callback func()) {
	s.onScanComplete = callback
}

// Start launches the initial scan and the periodic rescan loop.
func (s *Scanner) Start() {
	go func() {
		logging.Info("Starting initial scan in background...")
		if err := s.Scan(context.Background()); err != nil {
			logging.Error("Initial scan error: %v", err)
			s.scanMu.Lock()
			s.initialScanError = err
			s.scanMu.Unlock()
		}
	}()

	go s.periodicScan()
}

// Stop halts the periodic rescan loop.
func (s *Scanner) Stop() {
	close(s.stopChan)
}

// IsReady reports whether the initial scan has completed. Readiness is
// reached even when the initial scan failed: the service keeps serving
// whatever the index already holds.
func (s *Scanner) IsReady() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.initialScanComplete
}

// IsScanning reports whether a scan is currently in progress.
func (s *Scanner) IsScanning() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.isScanning
}

// GetHealthStatus returns detailed health information.
func (s *Scanner) GetHealthStatus() HealthStatus {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	status := HealthStatus{
		Ready:        s.initialScanComplete,
		Scanning:     s.isScanning,
		StartTime:    s.startTime,
		Uptime:       time.Since(s.startTime).String(),
		LastScan:     s.lastScanTime,
		FilesIndexed: s.filesIndexed.Load(),
		FilesSkipped: s.filesSkipped.Load(),
	}

	if s.initialScanError != nil {
		status.InitialScanError = s.initialScanError.Error()
	}

	return status
}

// TriggerScan starts a scan in the background. A scan already in
// progress is not interrupted; the trigger is simply dropped.
func (s *Scanner) TriggerScan() {
	go func() {
		if err := s.Scan(context.Background()); err != nil {
			logging.Error("Triggered scan failed: %v", err)
		}
	}()
}

// Scan walks all roots and replaces the index contents in one batch.
// The walk is buffered in memory first; the database is only touched
// after the traversal. An unavailable root is skipped, the other roots
// still land, and the vanished-file cleanup is withheld so entries
// under the unreachable root survive until it comes back.
func (s *Scanner) Scan(ctx context.Context) error {
	if !s.tryStartScan() {
		logging.Info("Scan already in progress, skipping...")
		return nil
	}
	defer s.finishScan()

	metrics.ScannerIsRunning.Set(1)
	defer metrics.ScannerIsRunning.Set(0)
	metrics.ScannerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting scan of %d root(s)...", len(s.roots))

	s.filesIndexed.Store(0)
	s.filesSkipped.Store(0)

	entries, failedRoots, err := s.walkRoots(ctx)
	if err != nil {
		metrics.ScannerErrors.WithLabelValues("walk").Inc()
		return err
	}

	if err := s.db.UpsertBatch(ctx, entries); err != nil {
		metrics.ScannerErrors.WithLabelValues("store").Inc()
		return fmt.Errorf("failed to store scan results: %w", err)
	}

	// Cleanup needs a complete traversal: with a root unreachable, its
	// entries were never touched this scan and would all be purged.
	if failedRoots == 0 {
		removed, err := s.db.DeleteNotSeenSince(ctx, startTime)
		if err != nil {
			metrics.ScannerErrors.WithLabelValues("store").Inc()
			logging.Error("Error removing vanished files: %v", err)
		} else if removed > 0 {
			logging.Info("Removed %d vanished files from index", removed)
		}
	} else {
		logging.Warn("Skipping vanished-file cleanup: %d of %d roots unavailable", failedRoots, len(s.roots))
	}

	s.finalizeScan(ctx, startTime, len(entries))
	return nil
}

// walkRoots traverses every root, fanning out across a bounded worker
// pool, and returns the combined entries plus the number of roots that
// could not be walked. A failed root is logged and skipped; only
// context cancellation aborts the scan.
func (s *Scanner) walkRoots(ctx context.Context) ([]*database.MediaEntry, int, error) {
	numWorkers := workers.ForIO(maxWalkWorkers)
	if numWorkers > len(s.roots) {
		numWorkers = len(s.roots)
	}
	logging.Debug("Walking %d roots with %d workers", len(s.roots), numWorkers)

	var (
		mu          sync.Mutex
		entries     []*database.MediaEntry
		failedRoots int
	)

	sem := make(chan struct{}, numWorkers)
	var wg sync.WaitGroup

	for _, root := range s.roots {
		wg.Add(1)
		go func(root string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rootEntries, err := s.walkRoot(ctx, root)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Warn("Skipping media root: %v", err)
				failedRoots++
				return
			}
			entries = append(entries, rootEntries...)
		}(root)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, failedRoots, err
	}
	return entries, failedRoots, nil
}

// walkRoot traverses one root directory.
func (s *Scanner) walkRoot(ctx context.Context, root string) ([]*database.MediaEntry, error) {
	if _, err := filesystem.Stat(root, filesystem.DefaultRetryConfig()); err != nil {
		metrics.ScannerErrors.WithLabelValues("root").Inc()
		return nil, fmt.Errorf("media root %s unavailable: %w", root, err)
	}

	var entries []*database.MediaEntry

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopChan:
			return filepath.SkipAll
		default:
		}

		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			metrics.ScannerErrors.WithLabelValues("stat").Inc()
			return nil
		}

		// Dotfiles and dot-directories are never indexed
		if strings.HasPrefix(info.Name(), ".") && path != root {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		entry, ok := BuildEntry(path, info, s.types, s.resolver)
		if !ok {
			s.filesSkipped.Add(1)
			metrics.ScannerFilesSkipped.Inc()
			return nil
		}

		entries = append(entries, entry)
		s.filesIndexed.Add(1)
		metrics.ScannerFilesIndexed.Inc()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk of %s failed: %w", root, err)
	}

	return entries, nil
}

func (s *Scanner) tryStartScan() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if s.isScanning {
		return false
	}
	s.isScanning = true
	return true
}

func (s *Scanner) finishScan() {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	s.isScanning = false
	s.initialScanComplete = true
}

func (s *Scanner) finalizeScan(ctx context.Context, startTime time.Time, totalFiles int) {
	duration := time.Since(startTime)

	s.scanMu.Lock()
	s.lastScanTime = time.Now()
	s.scanMu.Unlock()

	if stats, err := s.db.CalculateStats(ctx); err != nil {
		logging.Error("Failed to recalculate stats after scan: %v", err)
	} else {
		s.db.UpdateStats(stats)
	}

	metrics.ScannerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScannerLastRunDuration.Set(duration.Seconds())

	logging.Info("Scan complete: %d files indexed, %d skipped in %v",
		totalFiles, s.filesSkipped.Load(), duration)

	if s.onScanComplete != nil {
		s.onScanComplete()
	}
}

func (s *Scanner) periodicScan() {
	if s.scanInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic rescan triggered")
			if err := s.Scan(context.Background()); err != nil {
				logging.Error("Periodic rescan failed: %v", err)
			}
		case <-s.stopChan:
			return
		}
	}
}
