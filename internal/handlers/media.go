package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ripplechat/ripple/internal/media"
)

// MediaService is the slice of the media relay this handler needs.
type MediaService interface {
	GenerateUploadHandle(ctx context.Context) (media.UploadHandle, error)
	StoreUpload(ctx context.Context, handleID string, reader io.Reader) (string, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// MediaHandler serves upload-handle issuance, blob upload and blob retrieval.
type MediaHandler struct {
	service MediaService
	logger  *slog.Logger
}

// NewMediaHandler creates a MediaHandler.
func NewMediaHandler(log *slog.Logger, service MediaService) *MediaHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MediaHandler{
		service: service,
		logger:  log.With(slog.String("handler", "media")),
	}
}

// Register registers the media routes. Blob retrieval is public so message
// content URLs work in plain <img> tags; the other routes sit behind auth.
func (h *MediaHandler) Register(e *echo.Echo) {
	e.POST("/media/upload-url", h.GenerateUploadURL)
	e.PUT("/media/upload/:handle", h.Upload)
	e.GET("/media/:key", h.Serve)
}

type uploadURLResponse struct {
	HandleID   string `json:"handle_id"`
	UploadURL  string `json:"upload_url"`
	StorageKey string `json:"storage_key"`
}

// GenerateUploadURL issues a single-use upload handle.
func (h *MediaHandler) GenerateUploadURL(c echo.Context) error {
	handle, err := h.service.GenerateUploadHandle(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, uploadURLResponse{
		HandleID:   handle.ID,
		UploadURL:  handle.UploadURL,
		StorageKey: handle.StorageKey,
	})
}

// Upload consumes an upload handle and stores the request body as the blob.
func (h *MediaHandler) Upload(c echo.Context) error {
	storageKey, err := h.service.StoreUpload(c.Request().Context(), c.Param("handle"), c.Request().Body)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"storage_key": storageKey})
}

// Serve streams a stored blob back to the client.
func (h *MediaHandler) Serve(c echo.Context) error {
	reader, err := h.service.Open(c.Request().Context(), c.Param("key"))
	if err != nil {
		return httpError(err)
	}
	defer reader.Close()
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, reader)
}
