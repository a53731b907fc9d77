package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository   repositories.UserRepository
	postRepository   repositories.PostRepository
	followRepository repositories.FollowRepository
	likeRepository   repositories.LikeRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, postRepo repositories.PostRepository, followRepo repositories.FollowRepository, likeRepo repositories.LikeRepository) *UserHandler {
	return &UserHandler{
		userRepository:   userRepo,
		postRepository:   postRepo,
		followRepository: followRepo,
		likeRepository:   likeRepo,
	}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.DELETE("/profile", h.DeleteUser)
	g.GET("/users", h.ListUsers)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
	g.GET("/users/:id/stats", h.GetStats)
	g.GET("/users/:id/liked-posts", h.GetLikedPosts)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseUserIDParam(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), id)
	if err != nil {
		return repoError(err, "User")
	}
	return respond(c, http.StatusOK, user)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), currentUserID)
	if err != nil {
		return repoError(err, "User profile")
	}
	return respond(c, http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return repoError(err, "User profile")
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}
	if req.ImageURL != "" {
		user.ImageURL = req.ImageURL
	}

	if err := h.userRepository.UpdateUser(ctx, user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, user)
}

// DeleteUser deletes the authenticated user's profile
func (h *UserHandler) DeleteUser(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	if err := h.userRepository.DeleteUser(c.Request().Context(), currentUserID); err != nil {
		return repoError(err, "User profile")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUsers returns the newest accounts, used by the "top creators" column
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.userRepository.ListUsers(c.Request().Context(), queryLimit(c, 10))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, users)
}

// SearchUsers searches for users by a query string (name, username or email)
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query 'q' is required")
	}

	users, err := h.userRepository.SearchUsers(c.Request().Context(), query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, users)
}

// GetStats returns follower, following, post and resource counts of a profile
func (h *UserHandler) GetStats(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	id, err := parseUserIDParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := h.userRepository.GetUserByID(ctx, id); err != nil {
		return repoError(err, "User")
	}

	stats := models.ProfileStats{UserID: id}
	if stats.Followers, err = h.followRepository.GetFollowersCount(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if stats.Following, err = h.followRepository.GetFollowingCount(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if stats.PostsCount, stats.ResourcesCount, err = h.postRepository.CountByCreator(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if currentUserID != 0 && currentUserID != id {
		if stats.IsFollowing, err = h.followRepository.IsFollowing(ctx, currentUserID, id); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return respond(c, http.StatusOK, stats)
}

// GetLikedPosts lists the posts a user likes, newest first
func (h *UserHandler) GetLikedPosts(c echo.Context) error {
	id, err := parseUserIDParam(c)
	if err != nil {
		return err
	}
	posts, err := h.likeRepository.ListLikedBy(c.Request().Context(), id, int64(queryLimit(c, 20)))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, posts)
}
