package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/middleware"
)

// RegisterRoutes mounts the auth API and sign-in pages. limiter guards the
// credential endpoints against brute force.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService, limiter *middleware.RateLimiter) {
	limited := limiter.Middleware()
	bearer := RequireBearer(service)

	api := e.Group("/auth/v1")
	api.POST("/signup", h.SignUp, limited)
	api.POST("/token", h.Token, limited)
	api.POST("/recover", h.Recover, limited)
	api.POST("/verify", h.Verify, limited)
	api.POST("/logout", h.Logout, bearer)
	api.GET("/user", h.GetUser, bearer)
	api.PUT("/user", h.UpdateUser, bearer)

	e.GET("/login", h.LoginForm)
	e.POST("/login", h.LoginSubmit, limited)
	e.POST("/logout", h.LogoutSubmit)
	e.GET("/auth/reset-password", h.ResetPasswordForm)
	e.POST("/auth/reset-password", h.ResetPasswordSubmit, limited)
}
