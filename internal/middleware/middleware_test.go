package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_Assigned(t *testing.T) {
	t.Parallel()

	var seenID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/media", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenID == "" {
		t.Fatal("handler saw no request ID in context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seenID {
		t.Errorf("response header ID = %q, context ID = %q", got, seenID)
	}
}

func TestRequestID_ClientSuppliedKept(t *testing.T) {
	t.Parallel()

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetRequestID(r.Context()); got != "upstream-id" {
			t.Errorf("context ID = %q, want upstream-id", got)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/media", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "upstream-id" {
		t.Errorf("response header ID = %q, want upstream-id", got)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty without middleware", got)
	}
}

func TestSanitizeLogField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "GET /api/media", "GET /api/media"},
		{"newline forging", "value\n2024-01-01 fake line", "value 2024-01-01 fake line"},
		{"carriage return", "a\rb", "a b"},
		{"null byte", "a\x00b", "ab"},
		{"ansi escape", "a\x1b[31mred", "a[31mred"},
		{"tab preserved", "a\tb", "a\tb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.in); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	config := DefaultLoggingConfig()
	config.LogHealthChecks = false

	tests := []struct {
		path string
		want bool
	}{
		{"/api/media", false},
		{"/media/file/%2Fmedia%2Fa.jpg", false},
		{"/healthz", true},
		{"/livez", true},
		{"/static/app.css", true},
		{"/static/app.js", true},
	}

	for _, tt := range tests {
		if got := shouldSkip(tt.path, config); got != tt.want {
			t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:   "remote addr",
			remote: "192.0.2.10:54321",
			want:   "192.0.2.10",
		},
		{
			name:    "x-forwarded-for first hop",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"},
			remote:  "192.0.2.10:54321",
			want:    "203.0.113.5",
		},
		{
			name:    "x-real-ip",
			headers: map[string]string{"X-Real-IP": "198.51.100.7"},
			remote:  "192.0.2.10:54321",
			want:    "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/api/media", "/api/media"},
		{"/api/stats", "/api/stats"},
		{"/media/file/%2Fmedia%2Fphotos%2Fa.jpg", "/media/file/{path}"},
		{"/media/file/deep/nested/path.mp4", "/media/file/{path}"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestResponseWriter_CapturesStatusAndBytes(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusPartialContent)
	rw.WriteHeader(http.StatusOK) // second call ignored
	if _, err := rw.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if rw.statusCode != http.StatusPartialContent {
		t.Errorf("statusCode = %d, want 206", rw.statusCode)
	}
	if rw.bytesWritten != 10 {
		t.Errorf("bytesWritten = %d, want 10", rw.bytesWritten)
	}
}
