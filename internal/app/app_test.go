package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/scribe/internal/config"
	"github.com/keyxmakerx/scribe/internal/plugins/storage"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	backend, err := storage.NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	cfg := &config.Config{
		Env:     "development",
		Port:    8080,
		BaseURL: "http://localhost:8080",
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret-key-that-is-long-enough!!",
			AccessTokenTTL:   time.Hour,
			RefreshTokenTTL:  24 * time.Hour,
			RecoveryTokenTTL: time.Hour,
		},
		Storage: config.StorageConfig{Driver: "local", MaxSize: 1 << 20},
	}
	a := New(cfg, nil, rdb, backend)
	a.RegisterRoutes()
	t.Cleanup(a.Close)
	return a
}

func serve(a *App, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error body, got %q", rec.Body.String())
	}
	return body
}

func TestHealthz(t *testing.T) {
	rec := serve(newTestApp(t), http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"redis":"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestDashboardGate_RedirectsAnonymous(t *testing.T) {
	a := newTestApp(t)
	for _, path := range []string{"/dashboard", "/dashboard/posts/1/edit"} {
		rec := serve(a, http.MethodGet, path)
		if rec.Code != http.StatusSeeOther {
			t.Errorf("%s: expected 303, got %d", path, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/login" {
			t.Errorf("%s: expected redirect to /login, got %q", path, loc)
		}
	}
}

func TestAPIErrors_AreJSON(t *testing.T) {
	a := newTestApp(t)

	rec := serve(a, http.MethodPatch, "/rest/v1/posts?id=eq.1")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "unauthorized" || body["message"] == "" {
		t.Errorf("unexpected error body %v", body)
	}

	rec = serve(a, http.MethodGet, "/rest/v1/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "not_found" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestPageErrors_RenderHTML(t *testing.T) {
	rec := serve(newTestApp(t), http.MethodGet, "/no-such-page")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML, got %q", ct)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected security headers on error pages")
	}
}

func TestPagePOST_RequiresCSRF(t *testing.T) {
	rec := serve(newTestApp(t), http.MethodPost, "/login")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without CSRF token, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t)
	serve(a, http.MethodGet, "/healthz")

	rec := serve(a, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `scribe_http_requests_total{method="GET",route="/healthz",status="200"}`) {
		t.Errorf("expected healthz request counted, got:\n%s", rec.Body.String())
	}
}

func TestErrorType(t *testing.T) {
	cases := map[int]string{
		http.StatusNotFound:              "not_found",
		http.StatusBadRequest:            "bad_request",
		http.StatusUnauthorized:          "unauthorized",
		http.StatusRequestEntityTooLarge: "payload_too_large",
		http.StatusBadGateway:            "internal_error",
	}
	for code, want := range cases {
		if got := errorType(code); got != want {
			t.Errorf("errorType(%d) = %q, want %q", code, got, want)
		}
	}
}
