package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const userAgent = "postacad-cli/0.1.0"

// APIError is a non-2xx answer of the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API
func IsUnauthorized(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type User struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	ImageURL string `json:"image_url"`
}

type Post struct {
	ID           string    `json:"id"`
	CreatorID    uint      `json:"creator_id"`
	Caption      string    `json:"caption"`
	Tags         []string  `json:"tags"`
	ImageURL     string    `json:"image_url"`
	IsResource   bool      `json:"is_resource"`
	Price        int64     `json:"price"`
	Likes        []uint    `json:"likes"`
	UpdatedAt    time.Time `json:"updated_at"`
	Author       *User     `json:"author,omitempty"`
	IsLiked      bool      `json:"is_liked"`
	IsSaved      bool      `json:"is_saved"`
	ResourceType string    `json:"resource_type,omitempty"`
}

// FeedPage is one page of the infinite feed
type FeedPage struct {
	Posts      []Post `json:"posts"`
	NextCursor string `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
}

// CardState is the server's view of one post card for the signed-in user
type CardState struct {
	PostID     string `json:"post_id"`
	Liked      bool   `json:"liked"`
	LikesCount int    `json:"likes_count"`
	Saved      bool   `json:"saved"`
	Phase      string `json:"save_phase"`
	Pending    int    `json:"save_pending"`
}

// Client talks to the postacad API
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

// New returns a client for the API at baseURL, e.g. http://localhost:8080/api/v1
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)

	h.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		log.Debug("HTTP request", zap.String("method", req.Method), zap.String("url", req.URL))
		return nil
	})
	h.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Debug("HTTP response", zap.Int("status", resp.StatusCode()), zap.Duration("took", resp.Time()))
		return nil
	})

	return &Client{http: h, log: log}
}

// SetToken authenticates later requests with a session token
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return parseError(resp)
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func parseError(resp *resty.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Message != "" {
		return &APIError{StatusCode: resp.StatusCode(), Message: body.Message}
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
}

// SignIn exchanges credentials for a session token and installs it on the client
func (c *Client) SignIn(ctx context.Context, email, password string) (string, *User, error) {
	var out struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return "", nil, err
	}
	c.SetToken(out.Token)
	return out.Token, &out.User, nil
}

// Feed fetches the page after cursor; an empty cursor is the first page
func (c *Client) Feed(ctx context.Context, cursor string, limit int) (*FeedPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page FeedPage
	if err := c.do(ctx, http.MethodGet, "/feed?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchPosts searches captions; imagesOnly keeps posts with an image
func (c *Client) SearchPosts(ctx context.Context, term string, imagesOnly bool) ([]Post, error) {
	q := url.Values{}
	q.Set("q", term)
	if imagesOnly {
		q.Set("images_only", "true")
	}
	var posts []Post
	if err := c.do(ctx, http.MethodGet, "/posts/search?"+q.Encode(), nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) SearchUsers(ctx context.Context, term string) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users/search?q="+url.QueryEscape(term), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) Stats(ctx context.Context, postID string) (*CardState, error) {
	return c.card(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID)+"/stats")
}

// ToggleLike flips the like; the answer is optimistic and the write happens server side
func (c *Client) ToggleLike(ctx context.Context, postID string) (*CardState, error) {
	return c.card(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/like")
}

// ToggleSave flips the save; the answer is optimistic and the write is queued server side
func (c *Client) ToggleSave(ctx context.Context, postID string) (*CardState, error) {
	return c.card(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/save")
}

func (c *Client) card(ctx context.Context, method, path string) (*CardState, error) {
	var state CardState
	if err := c.do(ctx, method, path, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
