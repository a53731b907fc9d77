package poststats

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/postacad/backend/internal/metrics"
	"github.com/anonto42/postacad/backend/internal/savequeue"
	"go.uber.org/zap"
)

type Config struct {
	// Cooldown between two save actions of one session
	Cooldown time.Duration
	// CallTimeout bounds each backend write; zero means unbounded
	CallTimeout time.Duration
	// SessionTTL is how long an idle session survives without being used
	SessionTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = savequeue.DefaultCooldown
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 10 * time.Minute
	}
	return c
}

type sessionKey struct {
	postID string
	userID uint
}

// Registry owns one PostStats per (post, user) pair
type Registry struct {
	backend Backend
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[sessionKey]*PostStats
	closed   bool
}

func NewRegistry(backend Backend, cfg Config, log *zap.Logger, m *metrics.Metrics) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		backend:  backend,
		cfg:      cfg.withDefaults(),
		log:      log,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[sessionKey]*PostStats),
	}
}

// Get returns the session for the pair, loading its initial state from the backend the
// first time. Load errors (unknown post, bad id) are returned as is.
func (r *Registry) Get(ctx context.Context, postID string, userID uint) (*PostStats, error) {
	key := sessionKey{postID: postID, userID: userID}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := r.sessions[key]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	likes, err := r.backend.GetLikes(ctx, postID)
	if err != nil {
		return nil, err
	}
	recordID, err := r.backend.LoadSaved(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	// another request may have loaded the pair meanwhile
	if s, ok := r.sessions[key]; ok {
		return s, nil
	}
	s := newPostStats(postID, userID, likes, recordID, r.backend, r.cfg, r.log, r.metrics, r.now)
	r.sessions[key] = s
	r.metrics.SetSessions(len(r.sessions))
	return s, nil
}

// Lookup returns the live session for the pair without loading one
func (r *Registry) Lookup(postID string, userID uint) (*PostStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionKey{postID: postID, userID: userID}]
	return s, ok
}

// Forget closes every session of a post, e.g. after the post was deleted
func (r *Registry) Forget(postID string) {
	r.mu.Lock()
	var doomed []*PostStats
	for key, s := range r.sessions {
		if key.postID == postID {
			doomed = append(doomed, s)
			delete(r.sessions, key)
		}
	}
	r.metrics.SetSessions(len(r.sessions))
	r.mu.Unlock()

	for _, s := range doomed {
		s.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions unused for longer than the TTL whose writes have all finished.
// It returns the number of evicted sessions.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.SessionTTL)

	r.mu.Lock()
	var doomed []*PostStats
	for key, s := range r.sessions {
		if s.lastUsedAt().Before(cutoff) && s.Idle() {
			doomed = append(doomed, s)
			delete(r.sessions, key)
		}
	}
	r.metrics.SetSessions(len(r.sessions))
	r.mu.Unlock()

	for _, s := range doomed {
		s.Close()
	}
	if len(doomed) > 0 {
		r.log.Debug("Evicted idle post stats sessions", zap.Int("count", len(doomed)))
	}
	return len(doomed)
}

// Run sweeps periodically until ctx is done
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.SessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close closes all sessions; Get fails afterwards
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[sessionKey]*PostStats)
	r.metrics.SetSessions(0)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
