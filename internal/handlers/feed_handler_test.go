package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedPage struct {
	Posts      []EnrichedPost `json:"posts"`
	NextCursor string         `json:"next_cursor"`
	HasMore    bool           `json:"has_more"`
}

func TestFeedPagination(t *testing.T) {
	env := newTestEnv(t)
	author := env.addUser(t, "author")
	viewer := env.addUser(t, "viewer")
	for i := 0; i < 11; i++ {
		env.addPost(t, author.ID, fmt.Sprintf("post %d", i))
	}

	rec := env.do(t, http.MethodGet, "/api/v1/feed", viewer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeData[feedPage](t, rec)
	require.Len(t, first.Posts, defaultPageSize)
	assert.True(t, first.HasMore)
	assert.Equal(t, "post 10", first.Posts[0].Caption)
	assert.Equal(t, "author", first.Posts[0].Author.Username)

	rec = env.do(t, http.MethodGet, "/api/v1/feed?cursor="+first.NextCursor, viewer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeData[feedPage](t, rec)
	require.Len(t, second.Posts, 2)
	assert.False(t, second.HasMore)
	assert.Empty(t, second.NextCursor)
	assert.Equal(t, "post 0", second.Posts[1].Caption)

	t.Run("bad cursor", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/feed?cursor=garbage", viewer.ID, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("limit is capped", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/feed?limit=500", viewer.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeData[feedPage](t, rec).Posts, 11)
	})
}

func TestFollowingFeed(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.addUser(t, "viewer")
	followed := env.addUser(t, "followed")
	stranger := env.addUser(t, "stranger")
	env.addPost(t, viewer.ID, "mine")
	env.addPost(t, followed.ID, "theirs")
	env.addPost(t, stranger.ID, "not shown")
	require.NoError(t, env.follows.CreateFollow(t.Context(), viewer.ID, followed.ID))

	rec := env.do(t, http.MethodGet, "/api/v1/feed/following", viewer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	feed := decodeData[feedPage](t, rec)
	require.Len(t, feed.Posts, 2)
	assert.Equal(t, "theirs", feed.Posts[0].Caption)
	assert.Equal(t, "mine", feed.Posts[1].Caption)
}
