package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/talisker77/media-viewer/internal/database"
)

// ListMedia handles GET /api/media with pagination and filters.
func (h *Handlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := database.QueryOptions{
		Search: q.Get("search"),
	}

	if page := q.Get("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, errInvalidRequest,
				fmt.Sprintf("invalid page: %q", page))
			return
		}
		opts.Page = n
	}

	if perPage := q.Get("itemsPerPage"); perPage != "" {
		n, err := strconv.Atoi(perPage)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, errInvalidRequest,
				fmt.Sprintf("invalid itemsPerPage: %q", perPage))
			return
		}
		opts.PageSize = n
	}

	switch mediaType := q.Get("type"); mediaType {
	case "", database.TypeImage, database.TypeVideo:
		opts.Type = mediaType
	default:
		writeError(w, r, http.StatusBadRequest, errInvalidRequest,
			fmt.Sprintf("invalid type: %q (want image or video)", mediaType))
		return
	}

	if from := q.Get("dateFrom"); from != "" {
		t, err := parseDateParam(from, false)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, errInvalidRequest,
				fmt.Sprintf("invalid dateFrom: %q", from))
			return
		}
		opts.DateFrom = &t
	}

	if to := q.Get("dateTo"); to != "" {
		t, err := parseDateParam(to, true)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, errInvalidRequest,
				fmt.Sprintf("invalid dateTo: %q", to))
			return
		}
		opts.DateTo = &t
	}

	if loc := q.Get("hasLocation"); loc != "" {
		b, err := strconv.ParseBool(loc)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, errInvalidRequest,
				fmt.Sprintf("invalid hasLocation: %q", loc))
			return
		}
		opts.HasLocation = b
	}

	result, err := h.db.Query(r.Context(), opts)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, errInternal, "query failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// parseDateParam accepts either a bare date (2006-01-02) or RFC 3339.
// Bare upper bounds extend to the end of that day so a single-day range
// like dateFrom=2024-01-01&dateTo=2024-01-01 matches the whole day.
func parseDateParam(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		if endOfDay {
			t = t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		}
		return t.UTC(), nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// GetStats handles GET /api/stats.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.db.GetStats())
}

// TriggerReindex handles POST /api/reindex. The scan runs in the
// background; a scan already in progress absorbs the trigger.
func (h *Handlers) TriggerReindex(w http.ResponseWriter, _ *http.Request) {
	h.scanner.TriggerScan()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "scan_started"})
}
