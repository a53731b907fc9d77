package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anonto42/postacad/backend/internal/middleware"
	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/anonto42/postacad/backend/internal/poststats"
	"github.com/anonto42/postacad/backend/internal/testutils"
	"github.com/anonto42/postacad/backend/validators"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "handler-test-secret"

type echoMap = echo.Map

type testEnv struct {
	e        *echo.Echo
	users    *memUsers
	posts    *memPosts
	saved    *memSaved
	follows  *memFollows
	txs      *memTransactions
	files    *memFiles
	firebase *fakeFirebase
	checkout *fakeCheckout
	stats    *poststats.Registry
}

type envOption func(*testEnv)

func withCheckout(c *fakeCheckout) envOption {
	return func(env *testEnv) { env.checkout = c }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{
		e:        testutils.SetupTestEcho(validators.NewValidator()),
		users:    newMemUsers(),
		posts:    newMemPosts(),
		saved:    &memSaved{},
		follows:  newMemFollows(),
		txs:      &memTransactions{},
		files:    newMemFiles(),
		firebase: &fakeFirebase{},
	}
	for _, opt := range opts {
		opt(env)
	}

	log := zap.NewNop()
	env.stats = poststats.NewRegistry(
		poststats.NewStore(env.posts, env.saved),
		poststats.Config{Cooldown: 5 * time.Millisecond, CallTimeout: time.Second},
		log, nil,
	)
	t.Cleanup(env.stats.Close)

	var checkout CheckoutProvider
	if env.checkout != nil {
		checkout = env.checkout
	}

	authHandler := NewAuthHandler(env.users, env.firebase, testSecret, log)
	purchaseHandler := NewPurchaseHandler(env.posts, env.txs, checkout, nil, log)

	public := env.e.Group("/api/v1")
	authHandler.RegisterAuthRoutes(public.Group("/auth"))
	purchaseHandler.RegisterWebhookRoutes(public)

	api := env.e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(testSecret, nil, nil))
	authHandler.RegisterSessionRoutes(api)
	NewUserHandler(env.users, env.posts, env.follows, env.posts).RegisterProfileRoutes(api)
	NewFollowHandler(env.follows, env.users, log).RegisterFollowRoutes(api)
	NewPostHandler(env.posts, env.users, env.saved, env.files, env.stats, log).RegisterPostRoutes(api)
	NewFeedHandler(env.posts, env.users, env.follows, env.saved, env.stats).RegisterFeedRoutes(api)
	NewPostStatsHandler(env.stats, env.posts, env.users, env.saved, log).RegisterPostStatsRoutes(api)
	NewFileHandler(env.files, env.posts, env.txs, nil, log).RegisterFileRoutes(api)
	purchaseHandler.RegisterPurchaseRoutes(api)
	return env
}

func (env *testEnv) addUser(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Username: name, Email: name + "@example.com"}
	require.NoError(t, env.users.CreateUser(t.Context(), u))
	return u
}

func (env *testEnv) addPost(t *testing.T, creator uint, caption string) *models.Post {
	t.Helper()
	p := &models.Post{CreatorID: creator, Caption: caption, Availability: true}
	require.NoError(t, env.posts.CreatePost(t.Context(), p))
	return p
}

func token(t *testing.T, userID uint) string {
	t.Helper()
	claims := &models.JwtCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

// do sends a request as userID (0 means anonymous). body is JSON-encoded unless it is
// already a reader.
func (env *testEnv) do(t *testing.T, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return env.serve(t, req, userID)
}

func (env *testEnv) serve(t *testing.T, req *http.Request, userID uint) *httptest.ResponseRecorder {
	t.Helper()
	if userID != 0 {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	require.True(t, body.Success, rec.Body.String())
	return body.Data
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
