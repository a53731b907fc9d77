package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/anonto42/postacad/backend/internal/poststats"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/anonto42/postacad/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository repositories.PostRepository
	files          storage.FileStore
	stats          *poststats.Registry
	enricher       *postEnricher
	log            *zap.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	savedPostRepo repositories.SavedPostRepository,
	files storage.FileStore,
	stats *poststats.Registry,
	log *zap.Logger,
) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		files:          files,
		stats:          stats,
		enricher:       newPostEnricher(userRepo, savedPostRepo, stats),
		log:            log,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/recent", h.GetRecentPosts)
	g.GET("/posts/search", h.SearchPosts)
	g.GET("/posts/:id", h.GetPost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
}

// CreatePost creates a new post. Up to one image and one document may be attached through
// ids returned by POST /files.
func (h *PostHandler) CreatePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	post := &models.Post{
		CreatorID:    currentUserID,
		Caption:      req.Caption,
		Location:     req.Location,
		Tags:         models.ParseTags(req.Tags),
		IsResource:   req.IsResource,
		Price:        req.Price,
		Availability: true,
		Description:  req.Description,
		ResourceType: req.ResourceType,
	}
	if req.Availability != nil {
		post.Availability = *req.Availability
	}

	ctx := c.Request().Context()
	for _, id := range req.FileIDs {
		if err := h.attach(ctx, post, id, false); err != nil {
			return err
		}
	}

	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.log.Info("Post created", zap.String("post_id", post.ID.Hex()), zap.Uint("creator_id", currentUserID))
	return respond(c, http.StatusCreated, post)
}

// attach points the post at an uploaded file, by kind. Without replace a second file of the
// same kind is rejected.
func (h *PostHandler) attach(ctx context.Context, post *models.Post, fileID string, replace bool) error {
	file, err := h.files.Stat(ctx, fileID)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "Unknown file "+fileID)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	switch file.Kind {
	case storage.KindImage:
		if post.ImageID != "" && !replace {
			return echo.NewHTTPError(http.StatusBadRequest, "Only one image can be attached")
		}
		post.ImageID, post.ImageURL = file.ID, file.URL
	case storage.KindFile:
		if post.FileID != "" && !replace {
			return echo.NewHTTPError(http.StatusBadRequest, "Only one document can be attached")
		}
		post.FileID, post.FileURL = file.ID, file.URL
	default:
		return echo.NewHTTPError(http.StatusBadRequest, storage.ErrUnsupportedType.Error())
	}
	return nil
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := h.postRepository.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return repoError(err, "Post")
	}

	enriched, err := h.enricher.enrich(ctx, getUserIDFromContext(c), []models.Post{*post})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, enriched[0])
}

// GetRecentPosts returns the newest posts for the home column
func (h *PostHandler) GetRecentPosts(c echo.Context) error {
	ctx := c.Request().Context()
	posts, err := h.postRepository.ListRecent(ctx, int64(queryLimit(c, 20)))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	enriched, err := h.enricher.enrich(ctx, getUserIDFromContext(c), posts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, enriched)
}

// SearchPosts matches captions case-insensitively. An empty query yields no results.
func (h *PostHandler) SearchPosts(c echo.Context) error {
	term := strings.TrimSpace(c.QueryParam("q"))
	imagesOnly, _ := strconv.ParseBool(c.QueryParam("images_only"))

	ctx := c.Request().Context()
	posts, err := h.postRepository.SearchByCaption(ctx, term, imagesOnly, int64(queryLimit(c, 20)))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	enriched, err := h.enricher.enrich(ctx, getUserIDFromContext(c), posts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, enriched)
}

// UpdatePost updates an existing post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	existingPost, err := h.postRepository.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return repoError(err, "Post")
	}
	if existingPost.CreatorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this post")
	}

	if req.Caption != "" {
		existingPost.Caption = req.Caption
	}
	if req.Location != nil {
		existingPost.Location = *req.Location
	}
	if req.Tags != nil {
		existingPost.Tags = models.ParseTags(*req.Tags)
	}

	oldImage, oldFile := existingPost.ImageID, existingPost.FileID
	if req.FileID != "" {
		if err := h.attach(ctx, existingPost, req.FileID, true); err != nil {
			return err
		}
	}

	if err := h.postRepository.UpdatePost(ctx, existingPost); err != nil {
		return repoError(err, "Post")
	}

	if oldImage != "" && oldImage != existingPost.ImageID {
		h.removeFile(ctx, oldImage)
	}
	if oldFile != "" && oldFile != existingPost.FileID {
		h.removeFile(ctx, oldFile)
	}

	return respond(c, http.StatusOK, existingPost)
}

// DeletePost deletes a post, its attachments and any live card sessions for it
func (h *PostHandler) DeletePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	postID := c.Param("id")
	existingPost, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return repoError(err, "Post")
	}
	if existingPost.CreatorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := h.postRepository.DeletePost(ctx, postID); err != nil {
		return repoError(err, "Post")
	}

	if h.stats != nil {
		h.stats.Forget(postID)
	}
	if existingPost.ImageID != "" {
		h.removeFile(ctx, existingPost.ImageID)
	}
	if existingPost.FileID != "" {
		h.removeFile(ctx, existingPost.FileID)
	}

	return c.NoContent(http.StatusNoContent)
}

// removeFile deletes a detached upload. Failures only leave an orphaned object behind.
func (h *PostHandler) removeFile(ctx context.Context, id string) {
	if err := h.files.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
		h.log.Warn("Failed to delete detached file", zap.String("file_id", id), zap.Error(err))
	}
}
