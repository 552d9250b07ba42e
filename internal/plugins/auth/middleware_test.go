package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
)

// mockAuthService implements AuthService; only Authenticate is used by the
// middleware, the rest fail loudly if reached.
type mockAuthService struct {
	AuthService
	authenticateFn func(ctx context.Context, token string) (*Identity, error)
}

func (m *mockAuthService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	return m.authenticateFn(ctx, token)
}

func acceptToken(valid string) *mockAuthService {
	return &mockAuthService{authenticateFn: func(_ context.Context, token string) (*Identity, error) {
		if token != valid {
			return nil, apperror.NewUnauthorized("invalid or expired token")
		}
		return &Identity{UserID: "u-1", Email: "a@example.com", SessionID: "s-1"}, nil
	}}
}

func TestRequireBearer(t *testing.T) {
	e := echo.New()
	var seen string
	h := RequireBearer(acceptToken("good"))(func(c echo.Context) error {
		seen = GetUserID(c)
		return c.NoContent(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		ok     bool
	}{
		{"missing", "", false},
		{"wrong scheme", "Basic good", false},
		{"bad token", "Bearer bad", false},
		{"valid", "Bearer good", true},
		{"lowercase scheme", "bearer good", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/auth/v1/user", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			err := h(e.NewContext(req, httptest.NewRecorder()))
			if tc.ok {
				if err != nil || seen != "u-1" {
					t.Fatalf("expected pass with identity, got err=%v seen=%q", err, seen)
				}
				return
			}
			assertAppError(t, err, http.StatusUnauthorized)
		})
	}
}

func TestRequireSessionCookie_RedirectsBeforeHandler(t *testing.T) {
	e := echo.New()
	called := false
	h := RequireSessionCookie(acceptToken("good"))(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "secret dashboard")
	})

	for _, cookie := range []string{"", "expired"} {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie})
		}
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(req, rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if called {
			t.Fatalf("cookie %q: protected handler must not run", cookie)
		}
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Errorf("cookie %q: expected 303 to /login, got %d %q", cookie, rec.Code, rec.Header().Get("Location"))
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "good"})
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called || rec.Code != http.StatusOK {
		t.Errorf("expected handler to run for valid cookie, got %d", rec.Code)
	}
}

func TestOptionalSessionCookie(t *testing.T) {
	e := echo.New()
	var id *Identity
	h := OptionalSessionCookie(acceptToken("good"))(func(c echo.Context) error {
		id = GetIdentity(c)
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "good"})
	if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == nil || id.UserID != "u-1" {
		t.Errorf("expected identity from cookie, got %+v", id)
	}

	id = nil
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "stale"})
	if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != nil {
		t.Error("expected anonymous render for a stale cookie")
	}
}
