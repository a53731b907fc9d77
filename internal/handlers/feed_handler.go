package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/anonto42/postacad/backend/internal/poststats"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	postRepository   repositories.PostRepository
	followRepository repositories.FollowRepository
	enricher         *postEnricher
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	savedPostRepo repositories.SavedPostRepository,
	stats *poststats.Registry,
) *FeedHandler {
	return &FeedHandler{
		postRepository:   postRepo,
		followRepository: followRepo,
		enricher:         newPostEnricher(userRepo, savedPostRepo, stats),
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/feed/following", h.GetFollowingFeed)
}

// EnrichedPost is a post with author info and user-specific flags
type EnrichedPost struct {
	models.Post
	Author  models.UserCompact `json:"author"`
	IsLiked bool               `json:"is_liked"`
	IsSaved bool               `json:"is_saved"`
}

// GetFeed returns one page of the infinite feed, newest update first. The next_cursor of a
// page is passed back as ?cursor= to get the following one.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	ctx := c.Request().Context()

	page, err := h.postRepository.ListPage(ctx, c.QueryParam("cursor"), int64(queryLimit(c, defaultPageSize)))
	if err != nil {
		return repoError(err, "Post")
	}

	posts, err := h.enricher.enrich(ctx, currentUserID, page.Posts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return respond(c, http.StatusOK, echo.Map{
		"posts":       posts,
		"next_cursor": page.NextCursor,
		"has_more":    page.NextCursor != "",
	})
}

// GetFollowingFeed returns the newest posts of the accounts the user follows and their own
func (h *FeedHandler) GetFollowingFeed(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	creatorIDs, err := h.followRepository.GetFollowingIDs(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	creatorIDs = append(creatorIDs, currentUserID)

	found, err := h.postRepository.ListByCreators(ctx, creatorIDs, int64(queryLimit(c, 20)))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	posts, err := h.enricher.enrich(ctx, currentUserID, found)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, echo.Map{"posts": posts})
}

// postEnricher attaches authors and the viewer's like and save flags to posts. A live card
// session for the viewer wins over stored state, so a toggle still draining is reflected.
type postEnricher struct {
	users repositories.UserRepository
	saved repositories.SavedPostRepository
	stats *poststats.Registry
}

func newPostEnricher(users repositories.UserRepository, saved repositories.SavedPostRepository, stats *poststats.Registry) *postEnricher {
	return &postEnricher{users: users, saved: saved, stats: stats}
}

func (e *postEnricher) enrich(ctx context.Context, viewerID uint, posts []models.Post) ([]EnrichedPost, error) {
	enriched := make([]EnrichedPost, 0, len(posts))
	if len(posts) == 0 {
		return enriched, nil
	}

	creatorIDs := make([]uint, 0, len(posts))
	postIDs := make([]string, len(posts))
	seen := make(map[uint]bool, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID.Hex()
		if !seen[p.CreatorID] {
			seen[p.CreatorID] = true
			creatorIDs = append(creatorIDs, p.CreatorID)
		}
	}

	authors, err := e.users.GetUsersByIDs(ctx, creatorIDs)
	if err != nil {
		return nil, err
	}

	savedMap := map[string]bool{}
	if viewerID > 0 {
		if savedMap, err = e.saved.GetSavedPostIDs(ctx, viewerID, postIDs); err != nil {
			return nil, err
		}
	}

	for i, p := range posts {
		item := EnrichedPost{Post: p}
		if author, found := authors[p.CreatorID]; found {
			item.Author = author.ToCompact()
		}
		if viewerID > 0 {
			item.IsLiked = slices.Contains(p.Likes, viewerID)
			item.IsSaved = savedMap[postIDs[i]]
			e.overlay(&item, viewerID)
		}
		enriched = append(enriched, item)
	}
	return enriched, nil
}

func (e *postEnricher) overlay(item *EnrichedPost, viewerID uint) {
	if e.stats == nil {
		return
	}
	session, found := e.stats.Lookup(item.ID.Hex(), viewerID)
	if !found {
		return
	}
	snap := session.Snapshot()
	item.Likes = snap.Likes
	item.IsLiked = snap.Liked
	item.IsSaved = snap.Saved
}
