package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
)

func okHandler(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	e := echo.New()
	h := rl.Middleware()(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/v1/token", nil)
		req.RemoteAddr = "10.1.1.1:1234"
		if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/token", nil)
	req.RemoteAddr = "10.1.1.1:1234"
	rec := httptest.NewRecorder()
	err := h(e.NewContext(req, rec))
	if !apperror.HasCode(err, http.StatusTooManyRequests) {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodPost, "/auth/v1/token", nil)
	other.RemoteAddr = "10.1.1.2:1234"
	if err := h(e.NewContext(other, httptest.NewRecorder())); err != nil {
		t.Errorf("expected other IP to pass, got %v", err)
	}
}

func TestRateLimiter_EvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(5, time.Second)
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	if rl.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", rl.Len())
	}
	rl.evictIdle(time.Now().Add(time.Hour))
	if rl.Len() != 0 {
		t.Errorf("expected idle keys evicted, got %d", rl.Len())
	}
}

func TestCSRF_RejectsMissingToken(t *testing.T) {
	e := echo.New()
	h := CSRF()(okHandler)

	form := url.Values{"email": {"a@b.c"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})

	err := h(e.NewContext(req, httptest.NewRecorder()))
	if !apperror.HasCode(err, http.StatusForbidden) {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestCSRF_AcceptsMatchingFormToken(t *testing.T) {
	e := echo.New()
	h := CSRF()(okHandler)

	form := url.Values{csrfFormField: {"abc"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})

	if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCSRF_SkipsAPIPaths(t *testing.T) {
	e := echo.New()
	h := CSRF()(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/rest/v1/posts", strings.NewReader(`{}`))
	if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("expected API path to skip CSRF, got %v", err)
	}
}

func TestCSRF_IssuesCookieOnGet(t *testing.T) {
	e := echo.New()
	h := CSRF()(okHandler)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/login", nil), rec)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if CSRFToken(c) == "" {
		t.Error("expected token in context")
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), csrfCookieName) {
		t.Error("expected CSRF cookie to be set")
	}
}

func TestTrustedProxies_OnlyHonorsTrustedPeers(t *testing.T) {
	e := echo.New()
	if err := TrustedProxies(e, []string{"10.0.0.0/8"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.5")
	if got := e.IPExtractor(req); got != "203.0.113.9" {
		t.Errorf("expected forwarded client IP, got %q", got)
	}

	req.RemoteAddr = "198.51.100.1:5555"
	if got := e.IPExtractor(req); got != "198.51.100.1" {
		t.Errorf("expected untrusted peer IP, got %q", got)
	}

	if err := TrustedProxies(e, []string{"not-a-cidr"}); err == nil {
		t.Error("expected error for invalid CIDR")
	}
}

func TestIsAPIPath(t *testing.T) {
	cases := map[string]bool{
		"/auth/v1/token":         true,
		"/rest/v1/posts":         true,
		"/storage/v1/object/a/b": true,
		"/metrics":               true,
		"/dashboard":             false,
		"/login":                 false,
		"/authority":             false,
	}
	for path, want := range cases {
		if got := IsAPIPath(path); got != want {
			t.Errorf("IsAPIPath(%q) = %v, want %v", path, got, want)
		}
	}
}
