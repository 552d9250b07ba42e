package profiles

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/middleware"
	"github.com/keyxmakerx/scribe/internal/plugins/auth"
	"github.com/keyxmakerx/scribe/internal/restquery"
)

// Handler serves /rest/v1/profiles.
type Handler struct {
	service ProfileService
}

// NewHandler creates a profile handler.
func NewHandler(service ProfileService) *Handler {
	return &Handler{service: service}
}

// List handles GET /rest/v1/profiles. Profiles are public.
func (h *Handler) List(c echo.Context) error {
	q, err := restquery.Parse(c.QueryParams())
	if err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	out, err := h.service.List(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Upsert handles POST /rest/v1/profiles (bearer). Responds with the written
// row wrapped in an array, like every row store write.
func (h *Handler) Upsert(c echo.Context) error {
	var req UpsertRequest
	if err := middleware.BindValid(c, &req); err != nil {
		return err
	}
	p, err := h.service.Upsert(c.Request().Context(), auth.GetUserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, []Profile{*p})
}
