package posts

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/plugins/auth"
)

// RegisterRoutes mounts the posts table, the feed RPC, and the public feed
// page. Reads are public; writes need a bearer token.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	bearer := auth.RequireBearer(authSvc)

	g := e.Group("/rest/v1/posts")
	g.GET("", h.List)
	g.POST("", h.Insert, bearer)
	g.PATCH("", h.Update, bearer)
	g.DELETE("", h.Delete, bearer)

	e.POST("/rest/v1/rpc/get_posts_with_authors", h.FeedRPC)
	e.GET("/", h.FeedPage)
}

// RegisterDashboardRoutes mounts the post management pages on the
// cookie-gated /dashboard group.
func RegisterDashboardRoutes(dash *echo.Group, h *Handler) {
	dash.GET("", h.Dashboard)
	dash.POST("/posts", h.CreateSubmit)
	dash.GET("/posts/:id/edit", h.EditForm)
	dash.POST("/posts/:id", h.UpdateSubmit)
	dash.POST("/posts/:id/delete", h.DeleteSubmit)
}
