package storage

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/middleware"
	"github.com/keyxmakerx/scribe/internal/plugins/auth"
)

// RegisterRoutes mounts the object store. maxUploadSize caps request
// bodies before the handler reads them into memory.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService, limiter *middleware.RateLimiter, maxUploadSize int64) {
	e.GET("/storage/v1/object/public/:bucket/:name", h.Serve)
	e.POST("/storage/v1/object/:bucket/:name", h.Upload,
		auth.RequireBearer(authSvc),
		limiter.Middleware(),
		bodyLimit(maxUploadSize),
	)
}

// bodyLimit rejects request bodies larger than maxBytes.
func bodyLimit(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().ContentLength > maxBytes {
				return apperror.NewPayloadTooLarge(fmt.Sprintf("request body too large; maximum is %d MB", maxBytes/(1024*1024)))
			}
			c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBytes)
			return next(c)
		}
	}
}
