package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"

	"github.com/talisker77/media-viewer/internal/database"
	"github.com/talisker77/media-viewer/internal/filesystem"
	"github.com/talisker77/media-viewer/internal/logging"
	"github.com/talisker77/media-viewer/internal/mediatypes"
	"github.com/talisker77/media-viewer/internal/metrics"
	"github.com/talisker77/media-viewer/internal/streaming"
)

// StreamFile handles GET /media/file/{path} and serves the file bytes
// with range support. The index is the gate: only paths present in the
// index are served, and only from within the configured media roots.
func (h *Handlers) StreamFile(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["path"]

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidRequest, "malformed file path")
		return
	}
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}
	requestPath := filepath.Clean(decoded)

	// Containment first: a path outside the roots is forbidden no
	// matter what the index or the disk say about it.
	if !h.withinRoots(requestPath) {
		metrics.StreamsTotal.WithLabelValues("forbidden").Inc()
		writeError(w, r, http.StatusForbidden, errForbidden, "path outside media roots")
		return
	}

	entry, err := h.db.GetByPath(r.Context(), requestPath)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.StreamsTotal.WithLabelValues("not_found").Inc()
			writeError(w, r, http.StatusNotFound, errNotFoundInIndex,
				fmt.Sprintf("path not indexed: %s", requestPath))
			return
		}
		metrics.StreamsTotal.WithLabelValues("error").Inc()
		writeError(w, r, http.StatusInternalServerError, errInternal, "index lookup failed")
		return
	}

	// Resolve symlinks and re-check containment so a link inside a root
	// cannot serve a target outside it.
	resolved, err := filepath.EvalSymlinks(requestPath)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.StreamsTotal.WithLabelValues("not_found").Inc()
			writeError(w, r, http.StatusNotFound, errNotFoundOnDisk,
				"indexed file no longer exists on disk")
			return
		}
		metrics.StreamsTotal.WithLabelValues("error").Inc()
		writeError(w, r, http.StatusInternalServerError, errInternal, "failed to resolve path")
		return
	}
	if !h.withinRoots(resolved) {
		metrics.StreamsTotal.WithLabelValues("forbidden").Inc()
		writeError(w, r, http.StatusForbidden, errForbidden, "path resolves outside media roots")
		return
	}

	info, err := filesystem.Stat(resolved, h.retry)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.StreamsTotal.WithLabelValues("not_found").Inc()
			writeError(w, r, http.StatusNotFound, errNotFoundOnDisk,
				"indexed file no longer exists on disk")
			return
		}
		metrics.StreamsTotal.WithLabelValues("error").Inc()
		writeError(w, r, http.StatusInternalServerError, errInternal, "failed to stat file")
		return
	}
	if info.IsDir() {
		metrics.StreamsTotal.WithLabelValues("not_found").Inc()
		writeError(w, r, http.StatusNotFound, errNotFoundOnDisk, "path is a directory")
		return
	}

	file, err := filesystem.Open(resolved, h.retry)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.StreamsTotal.WithLabelValues("not_found").Inc()
			writeError(w, r, http.StatusNotFound, errNotFoundOnDisk,
				"indexed file no longer exists on disk")
			return
		}
		metrics.StreamsTotal.WithLabelValues("error").Inc()
		writeError(w, r, http.StatusInternalServerError, errInternal, "failed to open file")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close %s: %v", resolved, err)
		}
	}()

	// Size comes from the fresh stat, not the index; the file may have
	// changed since the last scan.
	size := info.Size()

	w.Header().Set("Content-Type", h.contentType(entry, resolved))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.cfg.CacheMaxAge))

	byteRange, err := streaming.ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		metrics.StreamsTotal.WithLabelValues("unsatisfiable").Inc()
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, r, http.StatusRequestedRangeNotSatisfiable, errRangeNotSatisfiable,
			fmt.Sprintf("range %q not satisfiable for size %d", r.Header.Get("Range"), size))
		return
	}

	var (
		reader  io.Reader
		outcome string
	)
	if byteRange != nil {
		w.Header().Set("Content-Range", byteRange.ContentRange())
		w.Header().Set("Content-Length", strconv.FormatInt(byteRange.Length, 10))
		w.WriteHeader(http.StatusPartialContent)
		reader = io.NewSectionReader(file, byteRange.Start, byteRange.Length)
		outcome = "partial"
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		reader = file
		outcome = "full"
	}

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	written, err := streaming.Stream(r.Context(), w, reader, h.stream)
	metrics.StreamBytesTotal.Add(float64(written))

	if err != nil {
		if errors.Is(err, streaming.ErrClientGone) || errors.Is(err, streaming.ErrStreamCanceled) {
			// Clients abandon video streams constantly; not an error.
			metrics.StreamClientDisconnects.Inc()
			logging.Debug("client disconnected streaming %s after %d bytes", resolved, written)
			return
		}
		metrics.StreamsTotal.WithLabelValues("error").Inc()
		logging.Error("streaming %s failed after %d bytes: %v", resolved, written, err)
		return
	}

	metrics.StreamsTotal.WithLabelValues(outcome).Inc()
}

// withinRoots reports whether path falls under one of the allowed media
// roots. The check is lexical; callers resolve symlinks separately.
func (h *Handlers) withinRoots(path string) bool {
	for _, root := range h.cfg.AllowedRoots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// contentType picks the MIME type from the extension allow-list, with
// content sniffing as a fallback for anything unrecognized.
func (h *Handlers) contentType(entry *database.MediaEntry, path string) string {
	ct := mediatypes.GetMimeType(filepath.Ext(entry.Name))
	if ct != "application/octet-stream" {
		return ct
	}
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		logging.Debug("mime detection failed for %s: %v", path, err)
		return ct
	}
	return detected.String()
}
