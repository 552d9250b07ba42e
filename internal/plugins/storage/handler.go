package storage

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/plugins/auth"
)

// Handler handles HTTP requests for the object store.
type Handler struct {
	service StorageService
}

// NewHandler creates a new storage handler.
func NewHandler(service StorageService) *Handler {
	return &Handler{service: service}
}

// Upload stores the raw request body (POST /storage/v1/object/:bucket/:name).
func (h *Handler) Upload(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.NewPayloadTooLarge("file too large")
		}
		return apperror.NewBadRequest("could not read upload")
	}
	if len(data) == 0 {
		return apperror.NewBadRequest("empty upload")
	}

	obj, err := h.service.Upload(c.Request().Context(), auth.GetUserID(c), UploadInput{
		Bucket:      c.Param("bucket"),
		Name:        c.Param("name"),
		ContentType: c.Request().Header.Get(echo.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UploadResponse{Key: obj.Key()})
}

// Serve streams a public object (GET /storage/v1/object/public/:bucket/:name).
func (h *Handler) Serve(c echo.Context) error {
	body, obj, err := h.service.Open(c.Request().Context(), c.Param("bucket"), c.Param("name"))
	if err != nil {
		return err
	}
	defer body.Close()

	header := c.Response().Header()
	header.Set("Cache-Control", cacheControl)
	header.Set("X-Content-Type-Options", "nosniff")
	if obj.Size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	}
	return c.Stream(http.StatusOK, obj.ContentType, body)
}
