package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/anonto42/postacad/backend/internal/poststats"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PostStatsHandler serves the like and save controls of a post card. Toggles answer with the
// optimistic card state right away; the writes drain in the background.
type PostStatsHandler struct {
	stats               *poststats.Registry
	postRepository      repositories.PostRepository
	savedPostRepository repositories.SavedPostRepository
	enricher            *postEnricher
	log                 *zap.Logger
}

// NewPostStatsHandler creates a new PostStatsHandler
func NewPostStatsHandler(
	stats *poststats.Registry,
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	savedPostRepo repositories.SavedPostRepository,
	log *zap.Logger,
) *PostStatsHandler {
	return &PostStatsHandler{
		stats:               stats,
		postRepository:      postRepo,
		savedPostRepository: savedPostRepo,
		enricher:            newPostEnricher(userRepo, savedPostRepo, stats),
		log:                 log,
	}
}

// RegisterPostStatsRoutes registers the card state routes
func (h *PostStatsHandler) RegisterPostStatsRoutes(g *echo.Group) {
	g.GET("/posts/:id/stats", h.GetStats)
	g.POST("/posts/:id/like", h.ToggleLike)
	g.POST("/posts/:id/save", h.ToggleSave)
	g.GET("/saved", h.GetSavedPosts)
}

// GetStats returns the card state. A session that already exists is refreshed from the
// backend first; pending toggles keep their displayed value.
func (h *PostStatsHandler) GetStats(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	postID := c.Param("id")
	if session, found := h.stats.Lookup(postID, currentUserID); found {
		if err := session.Refresh(ctx); err != nil {
			h.log.Warn("Failed to refresh post stats", zap.String("post_id", postID), zap.Error(err))
		}
		return respond(c, http.StatusOK, session.Snapshot())
	}

	session, err := h.stats.Get(ctx, postID, currentUserID)
	if err != nil {
		return statsError(err)
	}
	return respond(c, http.StatusOK, session.Snapshot())
}

// ToggleLike flips the viewer's like
func (h *PostStatsHandler) ToggleLike(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	snap, err := withSession(c.Request().Context(), h.stats, c.Param("id"), currentUserID, (*poststats.PostStats).ToggleLike)
	if err != nil {
		return statsError(err)
	}
	return respond(c, http.StatusAccepted, snap)
}

// ToggleSave flips the viewer's save and queues the matching write
func (h *PostStatsHandler) ToggleSave(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	snap, err := withSession(c.Request().Context(), h.stats, c.Param("id"), currentUserID, (*poststats.PostStats).ToggleSave)
	if err != nil {
		return statsError(err)
	}
	return respond(c, http.StatusAccepted, snap)
}

// GetSavedPosts lists the viewer's saved posts, most recently saved first
func (h *PostStatsHandler) GetSavedPosts(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	saved, err := h.savedPostRepository.GetSavedPostsByUser(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(saved) == 0 {
		return respond(c, http.StatusOK, []EnrichedPost{})
	}

	postIDs := make([]string, len(saved))
	for i, s := range saved {
		postIDs[i] = s.PostID
	}
	found, err := h.postRepository.GetPostsByIDs(ctx, postIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	byID := make(map[string]models.Post, len(found))
	for _, p := range found {
		byID[p.ID.Hex()] = p
	}
	// saved records of deleted posts are skipped
	posts := make([]models.Post, 0, len(found))
	for _, id := range postIDs {
		if p, exists := byID[id]; exists {
			posts = append(posts, p)
		}
	}

	enriched, err := h.enricher.enrich(ctx, currentUserID, posts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, enriched)
}

// withSession applies toggle to the pair's session. The janitor may evict the session between
// Get and toggle; the toggle then runs once more on a freshly loaded session. ErrClosed only
// surfaces when the registry itself is closed.
func withSession(
	ctx context.Context,
	stats *poststats.Registry,
	postID string,
	userID uint,
	toggle func(*poststats.PostStats) (poststats.Snapshot, error),
) (poststats.Snapshot, error) {
	var (
		snap poststats.Snapshot
		err  error
	)
	for attempt := 0; attempt < 2; attempt++ {
		var session *poststats.PostStats
		session, err = stats.Get(ctx, postID, userID)
		if err != nil {
			return poststats.Snapshot{}, err
		}
		snap, err = toggle(session)
		if !errors.Is(err, poststats.ErrClosed) {
			break
		}
	}
	return snap, err
}

func statsError(err error) error {
	if errors.Is(err, poststats.ErrClosed) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Service is shutting down")
	}
	return repoError(err, "Post")
}
