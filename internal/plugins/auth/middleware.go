package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
)

const contextKeyIdentity = "auth_identity"

// RequireBearer authenticates JSON API calls from the Authorization header.
// Failures return a 401 AppError, rendered as JSON by the app error handler.
func RequireBearer(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				return apperror.NewUnauthorized("missing bearer token")
			}
			id, err := service.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}
			c.Set(contextKeyIdentity, id)
			return next(c)
		}
	}
}

// RequireSessionCookie gates browser pages. It inspects the session cookie
// on every request and redirects to /login before the protected handler
// runs when the cookie is missing, expired, or revoked.
func RequireSessionCookie(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				return c.Redirect(http.StatusSeeOther, "/login")
			}
			id, err := service.Authenticate(c.Request().Context(), cookie.Value)
			if err != nil {
				clearSessionCookie(c)
				return c.Redirect(http.StatusSeeOther, "/login")
			}
			c.Set(contextKeyIdentity, id)
			return next(c)
		}
	}
}

// OptionalSessionCookie attaches the identity from a valid session cookie
// so public pages can show who is signed in. Invalid cookies are ignored.
func OptionalSessionCookie(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
				if id, err := service.Authenticate(c.Request().Context(), cookie.Value); err == nil {
					c.Set(contextKeyIdentity, id)
				}
			}
			return next(c)
		}
	}
}

// GetIdentity returns the authenticated caller, or nil.
func GetIdentity(c echo.Context) *Identity {
	id, _ := c.Get(contextKeyIdentity).(*Identity)
	return id
}

// GetUserID returns the authenticated caller's id, or "".
func GetUserID(c echo.Context) string {
	if id := GetIdentity(c); id != nil {
		return id.UserID
	}
	return ""
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
