package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/anonto42/postacad/backend/internal/metrics"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/anonto42/postacad/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const downloadURLTTL = 15 * time.Minute

// FileHandler handles uploads and resource downloads
type FileHandler struct {
	files                 storage.FileStore
	postRepository        repositories.PostRepository
	transactionRepository repositories.TransactionRepository
	metrics               *metrics.Metrics
	log                   *zap.Logger
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(files storage.FileStore, postRepo repositories.PostRepository, txRepo repositories.TransactionRepository, m *metrics.Metrics, log *zap.Logger) *FileHandler {
	return &FileHandler{
		files:                 files,
		postRepository:        postRepo,
		transactionRepository: txRepo,
		metrics:               m,
		log:                   log,
	}
}

// RegisterFileRoutes registers upload and download routes
func (h *FileHandler) RegisterFileRoutes(g *echo.Group) {
	g.POST("/files", h.Upload)
	g.GET("/posts/:id/download", h.Download)
}

// Upload stores the multipart field "file". Only images and PDFs are accepted.
func (h *FileHandler) Upload(c echo.Context) error {
	if _, err := requireUser(c); err != nil {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing file field")
	}
	if header.Size > storage.MaxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error())
	}

	src, err := header.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unreadable upload")
	}
	defer src.Close()

	file, err := h.files.Upload(c.Request().Context(), src, header.Filename)
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case err != nil:
		h.log.Error("Upload failed", zap.String("filename", header.Filename), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store file")
	}

	h.metrics.Upload(string(file.Kind))
	return respond(c, http.StatusCreated, file)
}

// Download returns a short-lived link to a post attachment. ?kind=image|file, default file.
// Priced resources are locked unless the viewer created them or completed a purchase.
func (h *FileHandler) Download(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.postRepository.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return repoError(err, "Post")
	}

	var fileID string
	switch storage.Kind(c.QueryParam("kind")) {
	case storage.KindImage:
		fileID = post.ImageID
	case storage.KindFile, "":
		fileID = post.FileID
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be image or file")
	}
	if fileID == "" {
		return echo.NewHTTPError(http.StatusNotFound, "Post has no such attachment")
	}

	if post.IsLocked() && post.CreatorID != currentUserID {
		purchased, err := h.transactionRepository.HasCompletedPurchase(ctx, post.ID.Hex(), currentUserID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if !purchased {
			return echo.NewHTTPError(http.StatusForbidden, "Purchase required to download this resource")
		}
	}

	url, err := h.files.SignedURL(ctx, fileID, downloadURLTTL)
	if err != nil {
		// credentials without a private key cannot sign; the media URL is still served by the bucket rules
		h.log.Warn("Falling back to public URL", zap.String("file_id", fileID), zap.Error(err))
		url = h.files.PublicURL(fileID)
	}

	return respond(c, http.StatusOK, echo.Map{
		"url":        url,
		"expires_in": int(downloadURLTTL.Seconds()),
	})
}
