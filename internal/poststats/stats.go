// Package poststats keeps the like and save state of a post card for one viewer. Toggles
// answer at once with the optimistic state; writes reach the backend in the background and
// their outcomes are folded back into the state.
package poststats

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anonto42/postacad/backend/internal/metrics"
	"github.com/anonto42/postacad/backend/internal/savequeue"
	"go.uber.org/zap"
)

// ErrClosed is returned by sessions and registries that were closed
var ErrClosed = errors.New("post stats session closed")

// Backend is everything a session reads from and writes to
type Backend interface {
	savequeue.Backend
	GetLikes(ctx context.Context, postID string) ([]uint, error)
	SetLikes(ctx context.Context, postID string, likes []uint) error
	// LoadSaved returns the record id of the user's save, or "" when the post is not saved
	LoadSaved(ctx context.Context, postID string, userID uint) (string, error)
}

// Snapshot is the card state shown to the viewer
type Snapshot struct {
	PostID     string `json:"post_id"`
	Likes      []uint `json:"likes"`
	LikesCount int    `json:"likes_count"`
	Liked      bool   `json:"liked"`
	Saved      bool   `json:"saved"`
	Phase      Phase  `json:"save_phase"`
	Pending    int    `json:"save_pending"`
}

// PostStats is the state of one post as seen by one user
type PostStats struct {
	postID       string
	userID       uint
	backend      Backend
	log          *zap.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	queue  *savequeue.Queue

	mu           sync.Mutex
	likes        LikeState
	save         SaveState
	likeWriting  bool
	nextLikes    LikeState
	hasNextLikes bool
	lastUsed     time.Time
	closed       bool
}

func newPostStats(postID string, userID uint, likes []uint, recordID string, backend Backend, cfg Config, log *zap.Logger, m *metrics.Metrics, now func() time.Time) *PostStats {
	ctx, cancel := context.WithCancel(context.Background())
	s := &PostStats{
		postID:       postID,
		userID:       userID,
		backend:      backend,
		log:          log.With(zap.String("post_id", postID), zap.Uint("user_id", userID)),
		metrics:      m,
		writeTimeout: cfg.CallTimeout,
		now:          now,
		ctx:          ctx,
		cancel:       cancel,
		likes:        normalizeLikes(likes),
		save:         NewSaveState(recordID),
		lastUsed:     now(),
	}
	s.queue = savequeue.New(backend,
		savequeue.WithCooldown(cfg.Cooldown),
		savequeue.WithCallTimeout(cfg.CallTimeout),
		savequeue.WithLogger(s.log),
		savequeue.WithMetrics(m),
		savequeue.WithRecordResolver(s.resolveRecord),
		savequeue.WithOnDone(s.saveDone),
	)
	return s
}

func (s *PostStats) PostID() string { return s.postID }
func (s *PostStats) UserID() uint { return s.userID }

// Snapshot returns the current displayed state
func (s *PostStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()
	return s.snapshotLocked()
}

func (s *PostStats) snapshotLocked() Snapshot {
	likes := append([]uint{}, s.likes...)
	return Snapshot{
		PostID:     s.postID,
		Likes:      likes,
		LikesCount: len(likes),
		Liked:      s.likes.Contains(s.userID),
		Saved:      s.save.Displayed(),
		Phase:      s.save.Phase(),
		Pending:    s.save.Pending(),
	}
}

// ToggleLike flips the viewer's like and sends the resulting set. While a write is in
// flight only the latest set is kept and sent when that write finishes.
func (s *PostStats) ToggleLike() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	s.lastUsed = s.now()

	s.likes = s.likes.Toggle(s.userID)
	set := append(LikeState{}, s.likes...)
	if s.likeWriting {
		s.nextLikes = set
		s.hasNextLikes = true
	} else {
		s.likeWriting = true
		go s.writeLikes(set)
	}
	return s.snapshotLocked(), nil
}

func (s *PostStats) writeLikes(set LikeState) {
	for {
		ctx, cancel := s.writeContext()
		err := s.backend.SetLikes(ctx, s.postID, set)
		cancel()
		switch {
		case err == nil:
			s.metrics.LikeWrite("ok")
		case s.ctx.Err() != nil:
			s.metrics.LikeWrite("abandoned")
		default:
			s.metrics.LikeWrite("error")
			s.log.Error("Failed to write likes", zap.Int("likes", len(set)), zap.Error(err))
		}

		s.mu.Lock()
		if !s.hasNextLikes || s.ctx.Err() != nil {
			s.likeWriting = false
			s.hasNextLikes = false
			s.nextLikes = nil
			s.mu.Unlock()
			return
		}
		set = s.nextLikes
		s.nextLikes = nil
		s.hasNextLikes = false
		s.mu.Unlock()
	}
}

func (s *PostStats) writeContext() (context.Context, context.CancelFunc) {
	if s.writeTimeout > 0 {
		return context.WithTimeout(s.ctx, s.writeTimeout)
	}
	return context.WithCancel(s.ctx)
}

// ToggleSave flips the displayed save flag and queues the matching action
func (s *PostStats) ToggleSave() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	s.lastUsed = s.now()

	// enqueue under the lock so queue order matches toggle order
	item := s.save.Toggle(s.postID, s.userID)
	if !s.queue.Enqueue(item) {
		s.save.Resolve(savequeue.Outcome{Item: item, Err: ErrClosed})
		return Snapshot{}, ErrClosed
	}
	return s.snapshotLocked(), nil
}

func (s *PostStats) resolveRecord(savequeue.Item) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save.RecordID()
}

func (s *PostStats) saveDone(out savequeue.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save.Resolve(out)
}

// SyncLikes applies a refetched like set unless a write of ours is still in flight
func (s *PostStats) SyncLikes(likes []uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.likeWriting {
		s.likes = normalizeLikes(likes)
	}
}

// Refresh refetches likes and the save record from the backend. A save record read before a
// queued action finished is discarded; the outcome of that action is newer.
func (s *PostStats) Refresh(ctx context.Context) error {
	s.mu.Lock()
	seen := s.save.Resolved()
	s.mu.Unlock()

	likes, err := s.backend.GetLikes(ctx, s.postID)
	if err != nil {
		return err
	}
	recordID, err := s.backend.LoadSaved(ctx, s.postID, s.userID)
	if err != nil {
		return err
	}
	s.SyncLikes(likes)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.save.Sync(recordID, seen) {
		s.log.Debug("Dropped stale save record")
	}
	return nil
}

// Idle reports whether no like write or save action is outstanding
func (s *PostStats) Idle() bool {
	s.mu.Lock()
	writing := s.likeWriting
	s.mu.Unlock()
	return !writing && s.queue.Idle()
}

func (s *PostStats) lastUsedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Close abandons outstanding writes and drops queued save actions
func (s *PostStats) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.queue.Close()
}
