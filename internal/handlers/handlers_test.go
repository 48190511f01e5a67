package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/talisker77/media-viewer/internal/database"
	"github.com/talisker77/media-viewer/internal/mediatypes"
	"github.com/talisker77/media-viewer/internal/metadata"
	"github.com/talisker77/media-viewer/internal/middleware"
	"github.com/talisker77/media-viewer/internal/scanner"
	"github.com/talisker77/media-viewer/internal/startup"
)

type testEnv struct {
	h        *Handlers
	router   *mux.Router
	db       *database.Database
	scanner  *scanner.Scanner
	mediaDir string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mediaDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := database.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	types := mediatypes.DefaultRegistry()
	resolver := metadata.NewResolver()
	sc := scanner.New(db, []string{mediaDir}, types, resolver, 0)

	cfg := &startup.Config{
		MediaDirs:    []string{mediaDir},
		AllowedRoots: []string{mediaDir},
		CacheMaxAge:  3600,
	}

	h := New(db, sc, cfg)

	router := mux.NewRouter()
	router.UseEncodedPath()
	router.HandleFunc("/api/media", h.ListMedia).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", h.GetStats).Methods(http.MethodGet)
	router.HandleFunc("/api/reindex", h.TriggerReindex).Methods(http.MethodPost)
	router.HandleFunc("/media/file/{path:.*}", h.StreamFile).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)

	return &testEnv{h: h, router: router, db: db, scanner: sc, mediaDir: mediaDir}
}

// writeMediaFile creates a file with deterministic content and indexes it.
func (env *testEnv) writeMediaFile(t *testing.T, name string, size int) string {
	t.Helper()

	path := filepath.Join(env.mediaDir, name)
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write media file: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat media file: %v", err)
	}

	entry := &database.MediaEntry{
		Path:      path,
		Name:      name,
		Type:      database.TypeImage,
		Directory: env.mediaDir,
		Size:      info.Size(),
		Modified:  info.ModTime(),
		Created:   info.ModTime(),
	}
	if err := env.db.UpsertOne(context.Background(), entry); err != nil {
		t.Fatalf("Failed to index media file: %v", err)
	}
	return path
}

func (env *testEnv) get(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
}

func TestListMediaPagination(t *testing.T) {
	env := setupTestEnv(t)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := make([]*database.MediaEntry, 0, 45)
	for i := 0; i < 45; i++ {
		path := fmt.Sprintf("%s/photo-%03d.jpg", env.mediaDir, i)
		entries = append(entries, &database.MediaEntry{
			Path:      path,
			Name:      filepath.Base(path),
			Type:      database.TypeImage,
			Directory: env.mediaDir,
			Size:      1024,
			Modified:  base.Add(time.Duration(i) * time.Minute),
			Created:   base,
		})
	}
	if err := env.db.UpsertBatch(context.Background(), entries); err != nil {
		t.Fatalf("UpsertBatch() failed: %v", err)
	}

	rec := env.get("/api/media?page=3&itemsPerPage=20", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result database.QueryResult
	decodeJSON(t, rec, &result)

	if result.TotalItems != 45 {
		t.Errorf("TotalItems = %d, want 45", result.TotalItems)
	}
	if result.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", result.TotalPages)
	}
	if result.CurrentPage != 3 {
		t.Errorf("CurrentPage = %d, want 3", result.CurrentPage)
	}
	if len(result.Items) != 5 {
		t.Errorf("len(Items) = %d, want 5", len(result.Items))
	}
	if result.HasMore {
		t.Error("HasMore = true on last page")
	}
}

func TestListMediaDefaults(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.get("/api/media", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result database.QueryResult
	decodeJSON(t, rec, &result)

	if result.CurrentPage != 1 {
		t.Errorf("CurrentPage = %d, want 1", result.CurrentPage)
	}
	if result.ItemsPerPage != 20 {
		t.Errorf("ItemsPerPage = %d, want 20", result.ItemsPerPage)
	}
	if result.Items == nil {
		t.Error("Items is null, want empty array")
	}
}

func TestListMediaInvalidParams(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name  string
		query string
	}{
		{"bad type", "type=audio"},
		{"bad page", "page=zero"},
		{"negative page", "page=-1"},
		{"bad itemsPerPage", "itemsPerPage=lots"},
		{"bad dateFrom", "dateFrom=yesterday"},
		{"bad dateTo", "dateTo=2024-13-45"},
		{"bad hasLocation", "hasLocation=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get("/api/media?"+tt.query, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}

			var resp errorResponse
			decodeJSON(t, rec, &resp)
			if resp.Error != errInvalidRequest {
				t.Errorf("error = %q, want %q", resp.Error, errInvalidRequest)
			}
		})
	}
}

func TestListMediaTypeFilter(t *testing.T) {
	env := setupTestEnv(t)

	now := time.Now().UTC()
	entries := []*database.MediaEntry{
		{Path: "/a.jpg", Name: "a.jpg", Type: database.TypeImage, Directory: "/", Size: 1, Modified: now, Created: now},
		{Path: "/b.mp4", Name: "b.mp4", Type: database.TypeVideo, Directory: "/", Size: 1, Modified: now, Created: now},
	}
	if err := env.db.UpsertBatch(context.Background(), entries); err != nil {
		t.Fatalf("UpsertBatch() failed: %v", err)
	}

	rec := env.get("/api/media?type=video", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result database.QueryResult
	decodeJSON(t, rec, &result)
	if result.TotalItems != 1 || len(result.Items) != 1 || result.Items[0].Type != database.TypeVideo {
		t.Errorf("type filter returned %+v", result)
	}
}

func TestParseDateParam(t *testing.T) {
	tests := []struct {
		value    string
		endOfDay bool
		want     time.Time
		wantErr  bool
	}{
		{value: "2024-01-15", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{value: "2024-01-15", endOfDay: true, want: time.Date(2024, 1, 15, 23, 59, 59, 0, time.UTC)},
		{value: "2024-01-15T10:30:00Z", want: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{value: "2024-01-15T10:30:00Z", endOfDay: true, want: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{value: "not-a-date", wantErr: true},
		{value: "2024-13-45", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseDateParam(tt.value, tt.endOfDay)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDateParam(%q) = %v, want error", tt.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDateParam(%q) error: %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseDateParam(%q, %v) = %v, want %v", tt.value, tt.endOfDay, got, tt.want)
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMediaFile(t, "photo.jpg", 100)

	stats, err := env.db.CalculateStats(context.Background())
	if err != nil {
		t.Fatalf("CalculateStats() failed: %v", err)
	}
	env.db.UpdateStats(stats)

	rec := env.get("/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got database.IndexStats
	decodeJSON(t, rec, &got)
	if got.TotalFiles != 1 || got.TotalImages != 1 {
		t.Errorf("stats = %+v, want 1 file, 1 image", got)
	}
}

func TestTriggerReindex(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/reindex", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["status"] != "scan_started" {
		t.Errorf("status = %q, want scan_started", resp["status"])
	}
}

func TestStreamFileFull(t *testing.T) {
	env := setupTestEnv(t)
	path := env.writeMediaFile(t, "photo.jpg", 1000)

	rec := env.get("/media/file"+path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("Content-Length = %q, want 1000", got)
	}
	if rec.Body.Len() != 1000 {
		t.Errorf("body length = %d, want 1000", rec.Body.Len())
	}
}

func TestStreamFileRange(t *testing.T) {
	env := setupTestEnv(t)
	path := env.writeMediaFile(t, "clip.mp4", 1000)

	rec := env.get("/media/file"+path, map[string]string{"Range": "bytes=100-199"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206 (body: %s)", rec.Code, rec.Body.String())
	}

	if got := rec.Header().Get("Content-Range"); got != "bytes 100-199/1000" {
		t.Errorf("Content-Range = %q, want bytes 100-199/1000", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q, want 100", got)
	}

	want := make([]byte, 100)
	for i := range want {
		want[i] = byte((100 + i) % 251)
	}
	if !bytes.Equal(rec.Body.Bytes(), want) {
		t.Error("range body does not match requested file slice")
	}
}

func TestStreamFileSuffixRange(t *testing.T) {
	env := setupTestEnv(t)
	path := env.writeMediaFile(t, "clip.mp4", 1000)

	rec := env.get("/media/file"+path, map[string]string{"Range": "bytes=-100"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 900-999/1000" {
		t.Errorf("Content-Range = %q, want bytes 900-999/1000", got)
	}
	if rec.Body.Len() != 100 {
		t.Errorf("body length = %d, want 100", rec.Body.Len())
	}
}

func TestStreamFileRangeUnsatisfiable(t *testing.T) {
	env := setupTestEnv(t)
	path := env.writeMediaFile(t, "clip.mp4", 1000)

	tests := []struct {
		name      string
		rangeSpec string
	}{
		{"start past size", "bytes=2000-3000"},
		{"end past size", "bytes=100-2000"},
		{"end just past last byte", "bytes=0-1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get("/media/file"+path, map[string]string{"Range": tt.rangeSpec})
			if rec.Code != http.StatusRequestedRangeNotSatisfiable {
				t.Fatalf("status = %d, want 416", rec.Code)
			}
			if got := rec.Header().Get("Content-Range"); got != "bytes */1000" {
				t.Errorf("Content-Range = %q, want bytes */1000", got)
			}

			var resp errorResponse
			decodeJSON(t, rec, &resp)
			if resp.Error != errRangeNotSatisfiable {
				t.Errorf("error = %q, want %q", resp.Error, errRangeNotSatisfiable)
			}
		})
	}
}

func TestStreamFileMalformedRangeServesFull(t *testing.T) {
	env := setupTestEnv(t)
	path := env.writeMediaFile(t, "clip.mp4", 500)

	rec := env.get("/media/file"+path, map[string]string{"Range": "bytes=abc"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for malformed range", rec.Code)
	}
	if rec.Body.Len() != 500 {
		t.Errorf("body length = %d, want 500", rec.Body.Len())
	}
}

func TestStreamFileNotIndexed(t *testing.T) {
	env := setupTestEnv(t)

	// On disk but never indexed: the index is the gate.
	path := filepath.Join(env.mediaDir, "unindexed.jpg")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	rec := env.get("/media/file"+path, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp errorResponse
	decodeJSON(t, rec, &resp)
	if resp.Error != errNotFoundInIndex {
		t.Errorf("error = %q, want %q", resp.Error, errNotFoundInIndex)
	}
}

func TestStreamFileVanishedFromDisk(t *testing.T) {
	env := setupTestEnv(t)
	path := env.writeMediaFile(t, "gone.jpg", 100)

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	rec := env.get("/media/file"+path, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp errorResponse
	decodeJSON(t, rec, &resp)
	if resp.Error != errNotFoundOnDisk {
		t.Errorf("error = %q, want %q", resp.Error, errNotFoundOnDisk)
	}
}

func TestStreamFileOutsideRoots(t *testing.T) {
	env := setupTestEnv(t)

	// Indexed but outside the configured roots; must never be served.
	outside := filepath.Join(t.TempDir(), "secret.jpg")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	entry := &database.MediaEntry{
		Path:      outside,
		Name:      "secret.jpg",
		Type:      database.TypeImage,
		Directory: filepath.Dir(outside),
		Size:      6,
		Modified:  time.Now(),
		Created:   time.Now(),
	}
	if err := env.db.UpsertOne(context.Background(), entry); err != nil {
		t.Fatalf("UpsertOne() failed: %v", err)
	}

	rec := env.get("/media/file"+outside, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var resp errorResponse
	decodeJSON(t, rec, &resp)
	if resp.Error != errForbidden {
		t.Errorf("error = %q, want %q", resp.Error, errForbidden)
	}
}

func TestStreamFileSymlinkEscape(t *testing.T) {
	env := setupTestEnv(t)

	target := filepath.Join(t.TempDir(), "target.jpg")
	if err := os.WriteFile(target, []byte("outside"), 0o644); err != nil {
		t.Fatalf("Failed to write target: %v", err)
	}

	link := filepath.Join(env.mediaDir, "link.jpg")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	entry := &database.MediaEntry{
		Path:      link,
		Name:      "link.jpg",
		Type:      database.TypeImage,
		Directory: env.mediaDir,
		Size:      7,
		Modified:  time.Now(),
		Created:   time.Now(),
	}
	if err := env.db.UpsertOne(context.Background(), entry); err != nil {
		t.Fatalf("UpsertOne() failed: %v", err)
	}

	rec := env.get("/media/file"+link, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for symlink escaping roots", rec.Code)
	}
}

func TestStreamFileTraversal(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMediaFile(t, "photo.jpg", 100)

	// Encoded traversal cleans to a path outside the roots; forbidden
	// regardless of index or disk state.
	rec := env.get("/media/file"+env.mediaDir+"/%2e%2e/%2e%2e/etc/passwd", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for traversal attempt", rec.Code)
	}

	var resp errorResponse
	decodeJSON(t, rec, &resp)
	if resp.Error != errForbidden {
		t.Errorf("error = %q, want %q", resp.Error, errForbidden)
	}
}

func TestErrorPayloadCarriesRequestID(t *testing.T) {
	env := setupTestEnv(t)

	wrapped := middleware.RequestID(env.router)
	req := httptest.NewRequest(http.MethodGet, "/media/file"+env.mediaDir+"/missing.jpg", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-12345")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp errorResponse
	decodeJSON(t, rec, &resp)
	if resp.RequestID != "req-12345" {
		t.Errorf("requestId = %q, want req-12345", resp.RequestID)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	// Not ready until the initial scan completes
	rec := env.get("/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before scan = %d, want 503", rec.Code)
	}

	rec = env.get("/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health before scan = %d, want 503", rec.Code)
	}
	var health HealthResponse
	decodeJSON(t, rec, &health)
	if health.Status != statusStarting {
		t.Errorf("status = %q, want %q", health.Status, statusStarting)
	}

	if err := env.scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	rec = env.get("/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz after scan = %d, want 200", rec.Code)
	}

	rec = env.get("/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health after scan = %d, want 200", rec.Code)
	}
	health = HealthResponse{}
	decodeJSON(t, rec, &health)
	if health.Status != statusHealthy || !health.Ready {
		t.Errorf("health = %+v, want healthy and ready", health)
	}
}

func TestLivenessCheck(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.get("/livez", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("livez = %d, want 200", rec.Code)
	}

	req := httptest.NewRequest(http.MethodHead, "/livez", nil)
	headRec := httptest.NewRecorder()
	env.router.ServeHTTP(headRec, req)
	if headRec.Code != http.StatusOK {
		t.Fatalf("HEAD livez = %d, want 200", headRec.Code)
	}
	if headRec.Body.Len() != 0 {
		t.Errorf("HEAD livez body length = %d, want 0", headRec.Body.Len())
	}
}
