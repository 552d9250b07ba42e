package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/metrics"
	"github.com/keyxmakerx/scribe/internal/middleware"
	"github.com/keyxmakerx/scribe/internal/plugins/auth"
	"github.com/keyxmakerx/scribe/internal/plugins/mailer"
	"github.com/keyxmakerx/scribe/internal/plugins/posts"
	"github.com/keyxmakerx/scribe/internal/plugins/profiles"
	"github.com/keyxmakerx/scribe/internal/plugins/storage"
	"github.com/keyxmakerx/scribe/internal/templates/layouts"
)

// notices maps the ?notice= codes set by redirects to the flash shown on
// the next page. Unknown codes show nothing.
var notices = map[string]string{
	"created": "Post published.",
	"updated": "Post updated.",
	"deleted": "Post deleted.",
}

// RegisterRoutes wires every plugin and mounts its routes. This is the
// single place where routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo
	cfg := a.Config

	// --- Auth provider ---
	authSvc := auth.NewAuthService(
		auth.NewUserRepository(a.DB),
		a.Redis,
		mailer.New(cfg.SMTP, nil),
		a.metrics,
		auth.ServiceConfig{
			JWTSecret:       cfg.Auth.JWTSecret,
			AccessTTL:       cfg.Auth.AccessTokenTTL,
			RefreshTTL:      cfg.Auth.RefreshTokenTTL,
			RecoveryTTL:     cfg.Auth.RecoveryTokenTTL,
			SiteURL:         cfg.BaseURL,
			RedirectOrigins: cfg.AllowedOrigins,
		},
	)

	// Layout data for every page render: who is signed in, the CSRF
	// token for forms, and any one-shot notice.
	middleware.LayoutInjector = func(c echo.Context, ctx context.Context) context.Context {
		if id := auth.GetIdentity(c); id != nil {
			ctx = layouts.WithUserEmail(ctx, id.Email)
		}
		if token := middleware.CSRFToken(c); token != "" {
			ctx = layouts.WithCSRFToken(ctx, token)
		}
		if msg, ok := notices[c.QueryParam("notice")]; ok {
			ctx = layouts.WithFlash(ctx, msg)
		}
		return ctx
	}

	// Pages learn the signed-in user from the cookie; API routes use
	// bearer tokens instead.
	optionalCookie := auth.OptionalSessionCookie(authSvc)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		withCookie := optionalCookie(next)
		return func(c echo.Context) error {
			if middleware.IsAPIPath(c.Request().URL.Path) {
				return next(c)
			}
			return withCookie(c)
		}
	})

	// --- Health and metrics ---
	e.GET("/healthz", a.healthz)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(a.registry)))

	auth.RegisterRoutes(e, auth.NewHandler(authSvc, cfg.Auth.AccessTokenTTL), authSvc, a.authLimiter)

	// --- Row store ---
	postHandler := posts.NewHandler(posts.NewPostService(posts.NewPostRepository(a.DB)))
	posts.RegisterRoutes(e, postHandler, authSvc)
	profiles.RegisterRoutes(e, profiles.NewHandler(profiles.NewProfileService(profiles.NewProfileRepository(a.DB))), authSvc)

	// --- Object store ---
	storageHandler := storage.NewHandler(storage.NewStorageService(a.Objects, cfg.Storage.MaxSize, a.metrics))
	storage.RegisterRoutes(e, storageHandler, authSvc, a.uploadLimiter, cfg.Storage.MaxSize)

	// --- Gated dashboard ---
	// The cookie is checked on every request, before any handler runs.
	dash := e.Group("/dashboard", auth.RequireSessionCookie(authSvc))
	posts.RegisterDashboardRoutes(dash, postHandler)
}

// healthz reports whether MariaDB and Redis answer.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok", "redis": "ok"}
	code := http.StatusOK
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			status["database"], status["status"], code = "unavailable", "degraded", http.StatusServiceUnavailable
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			status["redis"], status["status"], code = "unavailable", "degraded", http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, status)
}
