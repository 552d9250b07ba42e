// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, Redis client, object store
// backend, Echo instance) and wires the plugins together.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/config"
	"github.com/keyxmakerx/scribe/internal/metrics"
	"github.com/keyxmakerx/scribe/internal/middleware"
	"github.com/keyxmakerx/scribe/internal/plugins/storage"
	"github.com/keyxmakerx/scribe/internal/templates/pages"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	Config *config.Config

	// DB is the MariaDB connection pool shared by the row store plugins.
	DB *sql.DB

	// Redis holds refresh and recovery tokens.
	Redis *redis.Client

	// Objects is the object store backend (local or S3).
	Objects storage.Backend

	Echo *echo.Echo

	registry *prometheus.Registry
	metrics  *metrics.Collector

	// Per-IP limiters for credential endpoints and uploads.
	authLimiter   *middleware.RateLimiter
	uploadLimiter *middleware.RateLimiter
}

// New creates the App and configures Echo with global middleware and
// error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client, objects storage.Backend) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Trust the usual private ranges so c.RealIP() sees through a reverse
	// proxy. Rate limiting keys on it.
	if err := middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fd00::/8",
	}); err != nil {
		slog.Warn("ignoring trusted proxy config", slog.Any("error", err))
	}

	reg := prometheus.NewRegistry()
	app := &App{
		Config:        cfg,
		DB:            db,
		Redis:         rdb,
		Objects:       objects,
		Echo:          e,
		registry:      reg,
		metrics:       metrics.NewCollector(reg),
		authLimiter:   middleware.NewRateLimiter(10, time.Minute),
		uploadLimiter: middleware.NewRateLimiter(30, time.Minute),
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler
	return app
}

// setupMiddleware registers global middleware. Order matters: recovery
// is outermost, CSRF innermost.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(a.metrics.Middleware())

	// Public object URLs are served from BaseURL.
	a.Echo.Use(middleware.SecurityHeaders(a.Config.BaseURL))

	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   append([]string{a.Config.BaseURL}, a.Config.AllowedOrigins...),
		AllowCredentials: false,
	}))
	a.Echo.Use(middleware.CSRF())
}

// errorHandler maps errors to responses: JSON {"error", "message"} for the
// API groups, a redirect to /login for unauthenticated page requests, and
// the error page otherwise.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	typ := "internal_error"
	message := defaultErrorMessage(code)

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code, typ, message = appErr.Code, appErr.Type, appErr.Message
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		typ = errorType(code)
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = defaultErrorMessage(code)
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if middleware.IsAPIPath(c.Request().URL.Path) {
		_ = c.JSON(code, map[string]string{"error": typ, "message": message})
		return
	}

	if code == http.StatusUnauthorized {
		_ = c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	_ = middleware.Render(c, code, pages.ErrorPage(code, message))
}

// errorType names a status for errors that did not come from apperror.
func errorType(code int) string {
	switch code {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	if code >= 500 {
		return "internal_error"
	}
	return strings.ReplaceAll(strings.ToLower(http.StatusText(code)), " ", "_")
}

// defaultErrorMessage returns a user-friendly message for common status
// codes when the error carried none.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "You need to sign in to access this page."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist or has been moved."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "Something went wrong on our end. Please try again."
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Scribe server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}

// Close stops background work owned by the App.
func (a *App) Close() {
	a.authLimiter.Stop()
	a.uploadLimiter.Stop()
}
