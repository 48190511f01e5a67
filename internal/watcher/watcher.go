package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/talisker77/media-viewer/internal/database"
	"github.com/talisker77/media-viewer/internal/filesystem"
	"github.com/talisker77/media-viewer/internal/logging"
	"github.com/talisker77/media-viewer/internal/mediatypes"
	"github.com/talisker77/media-viewer/internal/metadata"
	"github.com/talisker77/media-viewer/internal/metrics"
	"github.com/talisker77/media-viewer/internal/scanner"
)

// EventKind classifies an index update.
type EventKind string

const (
	EventAdd    EventKind = "add"
	EventChange EventKind = "change"
	EventRemove EventKind = "remove"
)

// Event is one pending index update.
type Event struct {
	Kind EventKind
	Path string
}

// Buffered so short bursts (extracting an archive into a watched
// directory) don't block the notification reader.
const eventQueueSize = 1024

// Watcher keeps the index current between scans.
type Watcher struct {
	db       *database.Database
	roots    []string
	types    *mediatypes.Registry
	resolver *metadata.Resolver

	fsw      *fsnotify.Watcher
	events   chan Event
	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a Watcher over the given media roots.
func New(db *database.Database, roots []string, types *mediatypes.Registry, resolver *metadata.Resolver) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		db:       db,
		roots:    roots,
		types:    types,
		resolver: resolver,
		fsw:      fsw,
		events:   make(chan Event, eventQueueSize),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start watches all directories under the roots and begins applying
// events. Call after the initial scan so events land on a built index.
func (w *Watcher) Start() error {
	watchCount := 0
	for _, root := range w.roots {
		n, err := w.addDirectoryTree(root)
		if err != nil {
			return err
		}
		watchCount += n
	}

	metrics.WatcherDirectories.Set(float64(watchCount))
	logging.Info("Watcher started, watching %d directories", watchCount)

	go w.readLoop()
	go w.applyLoop()
	return nil
}

// Stop shuts the watcher down and waits for the apply loop to drain.
func (w *Watcher) Stop() {
	close(w.stopChan)
	if err := w.fsw.Close(); err != nil {
		logging.Error("failed to close file watcher: %v", err)
	}
	<-w.doneChan
}

// addDirectoryTree walks a directory and watches every non-hidden
// subdirectory. Returns the number of watches added.
func (w *Watcher) addDirectoryTree(root string) (int, error) {
	watchCount := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.Warn("Watcher cannot access %s: %v", path, err)
			metrics.WatcherErrors.Inc()
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logging.Warn("failed to watch %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
		} else {
			watchCount++
		}
		return nil
	})
	if err != nil {
		return watchCount, err
	}
	return watchCount, nil
}

// readLoop translates raw notifications into index events.
func (w *Watcher) readLoop() {
	for {
		select {
		case raw, ok := <-w.fsw.Events:
			if !ok {
				close(w.events)
				return
			}
			w.handleRawEvent(raw)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				close(w.events)
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()

		case <-w.stopChan:
			close(w.events)
			return
		}
	}
}

func (w *Watcher) handleRawEvent(raw fsnotify.Event) {
	// Hidden files and directories are invisible to the index
	if strings.Contains(raw.Name, string(os.PathSeparator)+".") {
		return
	}

	if raw.Op&fsnotify.Chmod != 0 {
		return
	}

	if raw.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(raw.Name); err == nil && info.IsDir() {
			w.handleNewDirectory(raw.Name)
			return
		}
	}

	event, ok := w.Translate(raw)
	if !ok {
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(string(event.Kind)).Inc()

	select {
	case w.events <- event:
		metrics.WatcherQueueDepth.Set(float64(len(w.events)))
	default:
		// Queue full. Dropping is safe: the periodic rescan reconciles.
		logging.Warn("Watcher queue full, dropping %s event for %s", event.Kind, event.Path)
		metrics.WatcherEventErrors.Inc()
	}
}

// handleNewDirectory watches a created directory and sweeps files that
// landed in it before the watch was in place.
func (w *Watcher) handleNewDirectory(dir string) {
	if _, err := w.addDirectoryTree(dir); err != nil {
		logging.Warn("failed to watch new directory %s: %v", dir, err)
		metrics.WatcherErrors.Inc()
		return
	}
	metrics.WatcherDirectories.Inc()
	logging.Debug("Watching new directory: %s", dir)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		event, ok := w.Translate(fsnotify.Event{Name: path, Op: fsnotify.Create})
		if !ok {
			return nil
		}
		select {
		case w.events <- event:
		default:
			metrics.WatcherEventErrors.Inc()
		}
		return nil
	})
	if err != nil {
		logging.Warn("sweep of new directory %s failed: %v", dir, err)
	}
}

// Translate maps a filesystem notification to an index event. The second
// return value is false for notifications the index does not care about.
// Sidecar writes translate to change events on the media file they
// describe, so metadata edits are picked up without touching the media
// file itself.
func (w *Watcher) Translate(raw fsnotify.Event) (Event, bool) {
	path := raw.Name

	if strings.HasSuffix(path, ".json") {
		mediaPath := strings.TrimSuffix(path, ".json")
		ext := strings.ToLower(filepath.Ext(mediaPath))
		if !w.types.IsMediaFile(ext) {
			return Event{}, false
		}
		return Event{Kind: EventChange, Path: mediaPath}, true
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !w.types.IsMediaFile(ext) {
		return Event{}, false
	}

	switch {
	case raw.Op&fsnotify.Create != 0:
		return Event{Kind: EventAdd, Path: path}, true
	case raw.Op&fsnotify.Write != 0:
		return Event{Kind: EventChange, Path: path}, true
	case raw.Op&fsnotify.Remove != 0, raw.Op&fsnotify.Rename != 0:
		return Event{Kind: EventRemove, Path: path}, true
	}
	return Event{}, false
}

// applyLoop is the single consumer of the event queue. One goroutine
// applying events keeps per-path ordering without any locking.
func (w *Watcher) applyLoop() {
	defer close(w.doneChan)

	for event := range w.events {
		metrics.WatcherQueueDepth.Set(float64(len(w.events)))
		if err := w.ApplyEvent(context.Background(), event); err != nil {
			logging.Warn("Failed to apply %s event for %s: %v", event.Kind, event.Path, err)
			metrics.WatcherEventErrors.Inc()
		}
	}
}

// ApplyEvent applies one index update.
func (w *Watcher) ApplyEvent(ctx context.Context, event Event) error {
	switch event.Kind {
	case EventAdd, EventChange:
		info, err := filesystem.Stat(event.Path, filesystem.DefaultRetryConfig())
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Created and deleted before we got here; the remove
				// event will follow or has already been applied.
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		entry, ok := scanner.BuildEntry(event.Path, info, w.types, w.resolver)
		if !ok {
			return nil
		}
		return w.db.UpsertOne(ctx, entry)

	case EventRemove:
		return w.db.Remove(ctx, event.Path)
	}
	return nil
}
