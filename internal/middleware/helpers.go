package middleware

import (
	"context"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
)

// apiPrefixes are the machine-facing route groups. They authenticate with
// bearer tokens, speak JSON, and are exempt from CSRF checks.
var apiPrefixes = []string{"/auth/v1/", "/rest/v1/", "/storage/v1/", "/metrics"}

// IsAPIPath reports whether path belongs to one of the JSON route groups.
func IsAPIPath(path string) bool {
	for _, p := range apiPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// LayoutInjector copies layout data (signed-in email, CSRF token) from the
// echo context into the context.Context that templ components render with.
// Set once in app.RegisterRoutes so this package never imports plugins.
var LayoutInjector func(echo.Context, context.Context) context.Context

// Render writes a templ component as an HTML response with the given status.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	ctx := c.Request().Context()
	if LayoutInjector != nil {
		ctx = LayoutInjector(c, ctx)
	}
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(statusCode)
	return component.Render(ctx, c.Response().Writer)
}

// Validatable is implemented by request DTOs with ozzo-validation rules.
type Validatable interface {
	Validate() error
}

// BindValid decodes the request into dst and runs its validation rules.
// Malformed bodies are 400s; rule violations are 422s carrying the
// per-field messages.
func BindValid(c echo.Context, dst Validatable) error {
	if err := c.Bind(dst); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := dst.Validate(); err != nil {
		return apperror.NewValidation(err.Error())
	}
	return nil
}
