package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/metrics"
	"github.com/keyxmakerx/scribe/internal/middleware"
	"github.com/keyxmakerx/scribe/internal/plugins/auth"
)

// mockAuthService accepts the token "good" as user u-1.
type mockAuthService struct {
	auth.AuthService
}

func (mockAuthService) Authenticate(_ context.Context, token string) (*auth.Identity, error) {
	if token != "good" {
		return nil, apperror.NewUnauthorized("invalid or expired token")
	}
	return &auth.Identity{UserID: "u-1"}, nil
}

func newTestServer(t *testing.T, maxSize int64) (*echo.Echo, *memoryBackend) {
	t.Helper()
	backend := newMemoryBackend()
	limiter := middleware.NewRateLimiter(100, time.Minute)
	t.Cleanup(limiter.Stop)

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		_ = c.JSON(apperror.SafeCode(err), map[string]string{"message": apperror.SafeMessage(err)})
	}
	RegisterRoutes(e, NewHandler(NewStorageService(backend, maxSize, metrics.Nop{})), mockAuthService{}, limiter, maxSize)
	return e, backend
}

func upload(e *echo.Echo, path, token, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_UploadThenServe(t *testing.T) {
	e, _ := newTestServer(t, 1<<20)
	data := pngBytes(t, 4, 4)

	rec := upload(e, "/storage/v1/object/post-images/u-1-1.png", "good", "image/png", data)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Key != "post-images/u-1-1.png" {
		t.Errorf("unexpected key %q", resp.Key)
	}

	req := httptest.NewRequest(http.MethodGet, "/storage/v1/object/public/post-images/u-1-1.png", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if rec.Header().Get("Cache-Control") != cacheControl {
		t.Error("expected immutable cache header")
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("expected stored bytes")
	}
}

func TestHandler_UploadRequiresBearer(t *testing.T) {
	e, backend := newTestServer(t, 1<<20)
	rec := upload(e, "/storage/v1/object/avatars/u-1-1.png", "", "image/png", pngBytes(t, 4, 4))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if len(backend.objects) != 0 {
		t.Error("expected nothing stored")
	}
}

func TestHandler_UploadTooLarge(t *testing.T) {
	e, _ := newTestServer(t, 16)
	rec := upload(e, "/storage/v1/object/avatars/u-1-1.png", "good", "image/png", pngBytes(t, 4, 4))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestHandler_UploadForeignPrefix(t *testing.T) {
	e, _ := newTestServer(t, 1<<20)
	rec := upload(e, "/storage/v1/object/avatars/u-2-1.png", "good", "image/png", pngBytes(t, 4, 4))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_ServeMissing(t *testing.T) {
	e, _ := newTestServer(t, 1<<20)
	req := httptest.NewRequest(http.MethodGet, "/storage/v1/object/public/avatars/u-1-9.png", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
