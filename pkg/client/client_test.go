package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeData(t *testing.T, w http.ResponseWriter, status int, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data}))
}

func TestClientSignInAndFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/signin":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "a@b.co", body["email"])
			writeData(t, w, http.StatusOK, map[string]interface{}{
				"token": "tok",
				"user":  map[string]interface{}{"id": 7, "username": "ana"},
			})
		case "/api/v1/feed":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "9", r.URL.Query().Get("limit"))
			assert.Equal(t, "c1", r.URL.Query().Get("cursor"))
			writeData(t, w, http.StatusOK, map[string]interface{}{
				"posts":    []map[string]interface{}{{"id": "p1", "caption": "hi", "likes": []uint{1, 2}}},
				"has_more": false,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/v1", time.Second, nil)

	token, user, err := c.SignIn(t.Context(), "a@b.co", "password1")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, uint(7), user.ID)

	page, err := c.Feed(t.Context(), "c1", FeedPageSize)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "p1", page.Posts[0].ID)
	assert.Equal(t, []uint{1, 2}, page.Posts[0].Likes)
	assert.False(t, page.HasMore)
}

func TestClientToggleSave(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/posts/p1/save", r.URL.Path)
		writeData(t, w, http.StatusAccepted, map[string]interface{}{
			"post_id": "p1", "saved": true, "save_phase": "optimistic", "save_pending": 1,
		})
	}))
	defer srv.Close()

	state, err := New(srv.URL, time.Second, nil).ToggleSave(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, &CardState{PostID: "p1", Saved: true, Phase: "optimistic", Pending: 1}, state)
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posts/p1/like":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"missing or malformed jwt"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)

	_, err := c.ToggleLike(t.Context(), "p1")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "[401] missing or malformed jwt", err.Error())

	_, err = c.Stats(t.Context(), "p2")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
	assert.False(t, IsUnauthorized(err))
}
