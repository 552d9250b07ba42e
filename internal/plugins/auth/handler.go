package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/middleware"
	"github.com/keyxmakerx/scribe/internal/templates/pages"
)

// sessionCookieName holds the access token for browser pages.
const sessionCookieName = "scribe_session"

// Handler serves the /auth/v1 JSON API and the browser sign-in pages. It
// binds requests, calls the service, and writes responses.
type Handler struct {
	service   AuthService
	cookieTTL time.Duration
}

// NewHandler creates an auth handler. cookieTTL should match the access
// token lifetime.
func NewHandler(service AuthService, cookieTTL time.Duration) *Handler {
	return &Handler{service: service, cookieTTL: cookieTTL}
}

// --- JSON API ---

// SignUp handles POST /auth/v1/signup.
func (h *Handler) SignUp(c echo.Context) error {
	var req CredentialsRequest
	if err := middleware.BindValid(c, &req); err != nil {
		return err
	}
	sess, err := h.service.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

// Token handles POST /auth/v1/token?grant_type=password|refresh_token.
func (h *Handler) Token(c echo.Context) error {
	ctx := c.Request().Context()

	switch c.QueryParam("grant_type") {
	case "password":
		var req CredentialsRequest
		if err := c.Bind(&req); err != nil {
			return apperror.NewBadRequest("invalid request body")
		}
		if req.Email == "" || req.Password == "" {
			return apperror.NewValidation("email and password are required")
		}
		sess, err := h.service.SignIn(ctx, req.Email, req.Password)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, sess)

	case "refresh_token":
		var req RefreshRequest
		if err := middleware.BindValid(c, &req); err != nil {
			return err
		}
		sess, err := h.service.Refresh(ctx, req.RefreshToken)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, sess)
	}

	return apperror.NewBadRequest("unsupported grant_type")
}

// Logout handles POST /auth/v1/logout (bearer).
func (h *Handler) Logout(c echo.Context) error {
	if err := h.service.SignOut(c.Request().Context(), *GetIdentity(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GetUser handles GET /auth/v1/user (bearer).
func (h *Handler) GetUser(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user.ToResponse())
}

// UpdateUser handles PUT /auth/v1/user (bearer).
func (h *Handler) UpdateUser(c echo.Context) error {
	var req UpdateUserRequest
	if err := middleware.BindValid(c, &req); err != nil {
		return err
	}

	input := UpdateUserInput{Password: req.Password}
	if len(req.Data) > 0 && string(req.Data) != "null" {
		if err := json.Unmarshal(req.Data, &input.Data); err != nil {
			return apperror.NewValidation("data must be a JSON object")
		}
	}

	user, err := h.service.UpdateUser(c.Request().Context(), GetUserID(c), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user.ToResponse())
}

// Recover handles POST /auth/v1/recover. Always 200 for valid input.
func (h *Handler) Recover(c echo.Context) error {
	var req RecoverRequest
	if err := middleware.BindValid(c, &req); err != nil {
		return err
	}
	if err := h.service.Recover(c.Request().Context(), req.Email, req.RedirectTo); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{})
}

// Verify handles POST /auth/v1/verify.
func (h *Handler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := middleware.BindValid(c, &req); err != nil {
		return err
	}
	sess, err := h.service.VerifyRecovery(c.Request().Context(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

// --- Browser pages ---

// LoginForm renders GET /login. Visitors with a live session go straight
// to the dashboard.
func (h *Handler) LoginForm(c echo.Context) error {
	if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if _, err := h.service.Authenticate(c.Request().Context(), cookie.Value); err == nil {
			return c.Redirect(http.StatusSeeOther, "/dashboard")
		}
	}

	var notice string
	if c.QueryParam("reset") == "success" {
		notice = "Your password has been updated. You can now sign in."
	}
	return middleware.Render(c, http.StatusOK, pages.Login("", "", notice))
}

// LoginSubmit handles POST /login from the form.
func (h *Handler) LoginSubmit(c echo.Context) error {
	email := c.FormValue("email")
	sess, err := h.service.SignIn(c.Request().Context(), email, c.FormValue("password"))
	if err != nil {
		return middleware.Render(c, apperror.SafeCode(err), pages.Login(email, apperror.SafeMessage(err), ""))
	}
	h.setSessionCookie(c, sess.AccessToken)
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// LogoutSubmit handles POST /logout from the nav form.
func (h *Handler) LogoutSubmit(c echo.Context) error {
	if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if id, err := h.service.Authenticate(c.Request().Context(), cookie.Value); err == nil {
			if err := h.service.SignOut(c.Request().Context(), *id); err != nil {
				return err
			}
		}
	}
	clearSessionCookie(c)
	return c.Redirect(http.StatusSeeOther, "/")
}

// ResetPasswordForm renders GET /auth/reset-password?token=...
func (h *Handler) ResetPasswordForm(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return apperror.NewBadRequest("missing recovery token")
	}
	return middleware.Render(c, http.StatusOK, pages.ResetPassword(token, ""))
}

// ResetPasswordSubmit exchanges the recovery token, sets the new password,
// and ends the recovery session.
func (h *Handler) ResetPasswordSubmit(c echo.Context) error {
	ctx := c.Request().Context()
	token := c.FormValue("token")
	password := c.FormValue("password")

	if len(password) < 8 {
		return middleware.Render(c, http.StatusUnprocessableEntity,
			pages.ResetPassword(token, "Password must be at least 8 characters."))
	}

	sess, err := h.service.VerifyRecovery(ctx, token)
	if err != nil {
		return middleware.Render(c, apperror.SafeCode(err), pages.ResetPassword("", apperror.SafeMessage(err)))
	}
	if _, err := h.service.UpdateUser(ctx, sess.User.ID, UpdateUserInput{Password: &password}); err != nil {
		return err
	}
	if id, err := h.service.Authenticate(ctx, sess.AccessToken); err == nil {
		_ = h.service.SignOut(ctx, *id)
	}
	return c.Redirect(http.StatusSeeOther, "/login?reset=success")
}

// --- Cookie helpers ---

func (h *Handler) setSessionCookie(c echo.Context, token string) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
