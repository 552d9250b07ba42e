package profiles

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/plugins/auth"
)

// RegisterRoutes mounts the profiles table under /rest/v1.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	g := e.Group("/rest/v1/profiles")
	g.GET("", h.List)
	g.POST("", h.Upsert, auth.RequireBearer(authSvc))
}
