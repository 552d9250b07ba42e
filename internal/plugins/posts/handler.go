package posts

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/client/feed"
	"github.com/keyxmakerx/scribe/internal/middleware"
	"github.com/keyxmakerx/scribe/internal/plugins/auth"
	"github.com/keyxmakerx/scribe/internal/restquery"
	"github.com/keyxmakerx/scribe/internal/templates/pages"
)

// Handler serves the posts row store, the feed RPC, and the HTML pages.
type Handler struct {
	service PostService
}

// NewHandler creates a post handler.
func NewHandler(service PostService) *Handler {
	return &Handler{service: service}
}

// --- Row store API ---

// List handles GET /rest/v1/posts. Posts are publicly readable.
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

// Insert handles POST /rest/v1/posts (bearer).
func (h *Handler) Insert(c echo.Context) error {
	var req InsertRequest
	if err := middleware.BindValid(c, &req); err != nil {
		return err
	}
	post, err := h.service.Create(c.Request().Context(), auth.GetUserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, []Post{*post})
}

// Update handles PATCH /rest/v1/posts?id=eq.N (bearer).
func (h *Handler) Update(c echo.Context) error {
	q, err := restquery.Parse(c.QueryParams())
	if err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	var req UpdateRequest
	if err := middleware.BindValid(c, &req); err != nil {
		return err
	}
	out, err := h.service.Update(c.Request().Context(), auth.GetUserID(c), q.Filters, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Delete handles DELETE /rest/v1/posts?id=eq.N (bearer).
func (h *Handler) Delete(c echo.Context) error {
	q, err := restquery.Parse(c.QueryParams())
	if err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	if err := h.service.Delete(c.Request().Context(), auth.GetUserID(c), q.Filters); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// FeedRPC handles POST /rest/v1/rpc/get_posts_with_authors.
func (h *Handler) FeedRPC(c echo.Context) error {
	out, err := h.service.Feed(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// --- HTML pages ---

// FeedPage renders GET / with optional ?q= and ?author= filters.
func (h *Handler) FeedPage(c echo.Context) error {
	all, err := h.service.Feed(c.Request().Context())
	if err != nil {
		return err
	}

	q := feed.Query{Text: c.QueryParam("q"), Author: c.QueryParam("author")}
	views := make([]pages.PostView, 0, len(all))
	for _, p := range all {
		username := ""
		if p.AuthorUsername != nil {
			username = *p.AuthorUsername
		}
		if !feed.Match(q, p.Title, p.Content, username, p.AuthorEmail) {
			continue
		}
		v := toView(p.Post)
		v.AuthorName = p.DisplayName()
		if p.AuthorAvatar != nil {
			v.AuthorAvatar = *p.AuthorAvatar
		}
		views = append(views, v)
	}
	return middleware.Render(c, http.StatusOK, pages.Feed(views, q.Text, q.Author))
}

// Dashboard renders GET /dashboard for the signed-in user.
func (h *Handler) Dashboard(c echo.Context) error {
	return h.renderDashboard(c, http.StatusOK, "")
}

// CreateSubmit handles POST /dashboard/posts.
func (h *Handler) CreateSubmit(c echo.Context) error {
	userID := auth.GetUserID(c)
	req := InsertRequest{
		Title:    c.FormValue("title"),
		Content:  c.FormValue("content"),
		AuthorID: userID,
		ImageURL: optional(c.FormValue("image_url")),
	}
	if _, err := h.service.Create(c.Request().Context(), userID, req); err != nil {
		return h.renderDashboard(c, apperror.SafeCode(err), apperror.SafeMessage(err))
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard?notice=created")
}

// EditForm renders GET /dashboard/posts/:id/edit.
func (h *Handler) EditForm(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}
	post, err := h.service.GetOwned(c.Request().Context(), auth.GetUserID(c), id)
	if err != nil {
		return err
	}
	return middleware.Render(c, http.StatusOK, pages.EditPost(toView(*post), ""))
}

// UpdateSubmit handles POST /dashboard/posts/:id.
func (h *Handler) UpdateSubmit(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}
	req := UpdateRequest{
		Title:    c.FormValue("title"),
		Content:  c.FormValue("content"),
		ImageURL: optional(c.FormValue("image_url")),
	}
	if _, err := h.service.Update(c.Request().Context(), auth.GetUserID(c), IDFilter(id), req); err != nil {
		if apperror.IsNotFound(err) {
			return err
		}
		view := pages.PostView{ID: id, Title: req.Title, Content: req.Content}
		return middleware.Render(c, apperror.SafeCode(err), pages.EditPost(view, apperror.SafeMessage(err)))
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard?notice=updated")
}

// DeleteSubmit handles POST /dashboard/posts/:id/delete.
func (h *Handler) DeleteSubmit(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), auth.GetUserID(c), IDFilter(id)); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard?notice=deleted")
}

func (h *Handler) renderDashboard(c echo.Context, status int, errMsg string) error {
	mine, err := h.service.ListByAuthor(c.Request().Context(), auth.GetUserID(c))
	if err != nil {
		return err
	}
	views := make([]pages.PostView, len(mine))
	for i, p := range mine {
		views[i] = toView(p)
	}
	return middleware.Render(c, status, pages.Dashboard(views, errMsg))
}

func toView(p Post) pages.PostView {
	v := pages.PostView{ID: p.ID, Title: p.Title, Content: p.Content, CreatedAt: p.CreatedAt}
	if p.ImageURL != nil {
		v.ImageURL = *p.ImageURL
	}
	return v
}

func postID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("invalid post id")
	}
	return id, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
