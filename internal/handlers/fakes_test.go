package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/anonto42/postacad/backend/internal/payments"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/anonto42/postacad/backend/internal/storage"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memUsers struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[uint]*models.User{}} }

func (m *memUsers) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user %d: %w", id, repositories.ErrNotFound)
}

func (m *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *memUsers) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.FirebaseUID != nil && *u.FirebaseUID == uid })
}

func (m *memUsers) GetUsersByIDs(_ context.Context, ids []uint) (map[uint]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uint]models.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = *u
		}
	}
	return out, nil
}

func (m *memUsers) ListUsers(_ context.Context, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUsers) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) DeleteUser(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) SearchUsers(_ context.Context, query string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Name+u.Username+u.Email), strings.ToLower(query)) {
			out = append(out, *u)
		}
	}
	return out, nil
}

// memPosts backs both the post and the like repository, like the posts collection does
type memPosts struct {
	mu    sync.Mutex
	posts map[string]*models.Post
	clock time.Time
}

func newMemPosts() *memPosts {
	return &memPosts{posts: map[string]*models.Post{}, clock: time.UnixMilli(1_700_000_000_000).UTC()}
}

func (m *memPosts) get(id string) (*models.Post, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, repositories.ErrInvalidID
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, repositories.ErrNotFound)
	}
	return p, nil
}

func (m *memPosts) CreatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	post.ID = primitive.NewObjectID()
	post.CreatedAt, post.UpdatedAt = m.clock, m.clock
	if post.Likes == nil {
		post.Likes = []uint{}
	}
	cp := *post
	m.posts[post.ID.Hex()] = &cp
	return nil
}

func (m *memPosts) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.get(id)
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) GetPostsByIDs(_ context.Context, ids []string) ([]models.Post, error) {
	return m.filter(func(p *models.Post) bool { return slices.Contains(ids, p.ID.Hex()) }, 0), nil
}

func (m *memPosts) UpdatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, err := m.get(post.ID.Hex())
	if err != nil {
		return err
	}
	m.clock = m.clock.Add(time.Second)
	post.UpdatedAt = m.clock
	post.Likes = existing.Likes
	cp := *post
	m.posts[post.ID.Hex()] = &cp
	return nil
}

func (m *memPosts) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.get(id); err != nil {
		return err
	}
	delete(m.posts, id)
	return nil
}

// filter returns matching posts newest first; limit 0 means all
func (m *memPosts) filter(match func(*models.Post) bool, limit int) []models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Post{}
	for _, p := range m.posts {
		if match(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memPosts) ListRecent(_ context.Context, limit int64) ([]models.Post, error) {
	return m.filter(func(*models.Post) bool { return true }, int(limit)), nil
}

// ListPage uses the hex id of the last post as the cursor
func (m *memPosts) ListPage(_ context.Context, cursor string, limit int64) (*models.PostPage, error) {
	all := m.filter(func(*models.Post) bool { return true }, 0)
	start := 0
	if cursor != "" {
		start = -1
		for i, p := range all {
			if p.ID.Hex() == cursor {
				start = i + 1
			}
		}
		if start < 0 {
			return nil, repositories.ErrInvalidCursor
		}
	}
	rest := all[start:]
	page := &models.PostPage{Posts: rest}
	if int64(len(rest)) > limit {
		page.Posts = rest[:limit]
		page.NextCursor = page.Posts[limit-1].ID.Hex()
	}
	return page, nil
}

func (m *memPosts) ListByCreators(_ context.Context, ids []uint, limit int64) ([]models.Post, error) {
	return m.filter(func(p *models.Post) bool { return slices.Contains(ids, p.CreatorID) }, int(limit)), nil
}

func (m *memPosts) SearchByCaption(_ context.Context, term string, imagesOnly bool, limit int64) ([]models.Post, error) {
	if term == "" {
		return []models.Post{}, nil
	}
	return m.filter(func(p *models.Post) bool {
		if imagesOnly && p.ImageID == "" {
			return false
		}
		return strings.Contains(strings.ToLower(p.Caption), strings.ToLower(term))
	}, int(limit)), nil
}

func (m *memPosts) CountByCreator(_ context.Context, creatorID uint) (int64, int64, error) {
	var posts, resources int64
	for _, p := range m.filter(func(p *models.Post) bool { return p.CreatorID == creatorID }, 0) {
		posts++
		if p.IsResource {
			resources++
		}
	}
	return posts, resources, nil
}

func (m *memPosts) GetLikes(_ context.Context, postID string) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.get(postID)
	if err != nil {
		return nil, err
	}
	return append([]uint{}, p.Likes...), nil
}

func (m *memPosts) SetLikes(_ context.Context, postID string, likes []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.get(postID)
	if err != nil {
		return err
	}
	p.Likes = append([]uint{}, likes...)
	return nil
}

func (m *memPosts) ListLikedBy(_ context.Context, userID uint, limit int64) ([]models.Post, error) {
	return m.filter(func(p *models.Post) bool { return slices.Contains(p.Likes, userID) }, int(limit)), nil
}

func (m *memPosts) likes(postID string) []uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint{}, m.posts[postID].Likes...)
}

type memSaved struct {
	mu      sync.Mutex
	records []models.SavedPost
}

func (m *memSaved) SavePost(_ context.Context, userID uint, postID string) (*models.SavedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == userID && r.PostID == postID {
			cp := r
			return &cp, repositories.ErrAlreadySaved
		}
	}
	r := models.SavedPost{ID: uuid.NewString(), UserID: userID, PostID: postID, CreatedAt: time.Now()}
	m.records = append(m.records, r)
	return &r, nil
}

func (m *memSaved) DeleteSavedPost(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == recordID {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memSaved) FindSavedPost(_ context.Context, userID uint, postID string) (*models.SavedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == userID && r.PostID == postID {
			cp := r
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memSaved) GetSavedPostByID(_ context.Context, recordID string) (*models.SavedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == recordID {
			cp := r
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memSaved) GetSavedPostsByUser(_ context.Context, userID uint) ([]models.SavedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SavedPost{}
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].UserID == userID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memSaved) GetSavedPostIDs(_ context.Context, userID uint, postIDs []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, r := range m.records {
		if r.UserID == userID && slices.Contains(postIDs, r.PostID) {
			out[r.PostID] = true
		}
	}
	return out, nil
}

func (m *memSaved) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memFollows struct {
	mu    sync.Mutex
	pairs map[[2]uint]bool
}

func newMemFollows() *memFollows { return &memFollows{pairs: map[[2]uint]bool{}} }

func (m *memFollows) CreateFollow(_ context.Context, follower, following uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pairs[[2]uint{follower, following}] {
		return repositories.ErrAlreadyFollowing
	}
	m.pairs[[2]uint{follower, following}] = true
	return nil
}

func (m *memFollows) DeleteFollow(_ context.Context, follower, following uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pairs[[2]uint{follower, following}] {
		return repositories.ErrNotFound
	}
	delete(m.pairs, [2]uint{follower, following})
	return nil
}

func (m *memFollows) IsFollowing(_ context.Context, follower, following uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairs[[2]uint{follower, following}], nil
}

func (m *memFollows) GetFollowersCount(_ context.Context, userID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for pair := range m.pairs {
		if pair[1] == userID {
			n++
		}
	}
	return n, nil
}

func (m *memFollows) GetFollowingCount(ctx context.Context, userID uint) (int64, error) {
	ids, _ := m.GetFollowingIDs(ctx, userID)
	return int64(len(ids)), nil
}

func (m *memFollows) GetFollowingIDs(_ context.Context, userID uint) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []uint{}
	for pair := range m.pairs {
		if pair[0] == userID {
			ids = append(ids, pair[1])
		}
	}
	return ids, nil
}

type memTransactions struct {
	mu  sync.Mutex
	txs []*models.Transaction
}

func (m *memTransactions) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.txs {
		if existing.PostID == tx.PostID && existing.BuyerID == tx.BuyerID {
			if existing.Status != models.TransactionFailed {
				return repositories.ErrAlreadyPurchased
			}
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			break
		}
	}
	tx.ID = uuid.NewString()
	cp := *tx
	m.txs = append(m.txs, &cp)
	return nil
}

func (m *memTransactions) GetTransactionsForPostAndUser(_ context.Context, postID string, buyerID uint) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Transaction{}
	for _, tx := range m.txs {
		if tx.PostID == postID && tx.BuyerID == buyerID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (m *memTransactions) HasCompletedPurchase(ctx context.Context, postID string, buyerID uint) (bool, error) {
	txs, _ := m.GetTransactionsForPostAndUser(ctx, postID, buyerID)
	for _, tx := range txs {
		if tx.Status == models.TransactionCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTransactions) CompleteByCheckoutSession(_ context.Context, sessionID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.CheckoutSessionID == sessionID {
			tx.Status = models.TransactionCompleted
			cp := *tx
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memTransactions) update(id string, fn func(*models.Transaction)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.ID == id {
			fn(tx)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memTransactions) SetCheckoutSession(_ context.Context, id, sessionID string) error {
	return m.update(id, func(tx *models.Transaction) { tx.CheckoutSessionID = sessionID })
}

func (m *memTransactions) MarkFailed(_ context.Context, id string) error {
	return m.update(id, func(tx *models.Transaction) { tx.Status = models.TransactionFailed })
}

type memFiles struct {
	mu      sync.Mutex
	files   map[string]*storage.File
	deleted []string
	signErr error
}

func newMemFiles() *memFiles { return &memFiles{files: map[string]*storage.File{}} }

func (m *memFiles) Upload(_ context.Context, r io.Reader, filename string) (*storage.File, error) {
	mime, content, err := storage.Sniff(r)
	if err != nil {
		return nil, err
	}
	kind, err := storage.Classify(mime)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	n, _ := io.Copy(&buf, content)
	return m.add(kind, filename, mime.String(), n), nil
}

func (m *memFiles) add(kind storage.Kind, name, contentType string, size int64) *storage.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	f := &storage.File{ID: id, Name: name, Kind: kind, ContentType: contentType, Size: size, URL: "https://files.test/" + id}
	m.files[id] = f
	return f
}

func (m *memFiles) Stat(_ context.Context, id string) (*storage.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, storage.ErrFileNotFound
}

func (m *memFiles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return storage.ErrFileNotFound
	}
	delete(m.files, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memFiles) SignedURL(_ context.Context, id string, ttl time.Duration) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	return fmt.Sprintf("https://signed.test/%s?ttl=%d", id, int(ttl.Seconds())), nil
}

func (m *memFiles) PublicURL(id string) string { return "https://files.test/" + id }

type fakeCheckout struct {
	err       error
	sessions  []payments.SessionRequest
	completed *payments.CompletedCheckout
}

func (f *fakeCheckout) CreateSession(_ context.Context, req payments.SessionRequest) (*payments.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sessions = append(f.sessions, req)
	return &payments.Session{ID: "cs_" + req.TransactionID, URL: "https://checkout.test/" + req.TransactionID}, nil
}

func (f *fakeCheckout) ParseWebhook(_ []byte, signature string) (*payments.CompletedCheckout, error) {
	if signature != "valid" {
		return nil, payments.ErrBadSignature
	}
	return f.completed, nil
}

type fakeFirebase struct {
	tokens  map[string]*auth.Token
	revoked []string
}

func (f *fakeFirebase) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if t, ok := f.tokens[idToken]; ok {
		return t, nil
	}
	return nil, errors.New("token rejected")
}

func (f *fakeFirebase) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.revoked = append(f.revoked, uid)
	return nil
}
