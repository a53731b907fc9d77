// Package savequeue serializes save and unsave requests for one post and user, pacing them
// with a cooldown so the backend never sees overlapping or bursty writes for that pair.
package savequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/postacad/backend/internal/metrics"
	"go.uber.org/zap"
)

// DefaultCooldown is the pause between the completion of one item and the start of the next
const DefaultCooldown = time.Second

type Action string

const (
	ActionSave   Action = "save"
	ActionDelete Action = "delete"
)

// Item is one queued persistence request. RecordID is only meaningful for deletes and may be
// empty when the record is not known yet; see WithRecordResolver.
type Item struct {
	Action   Action
	PostID   string
	UserID   uint
	RecordID string
}

// SaveResult is the terminal result of a save. AlreadySaved reports that the pair was
// persisted before; RecordID then identifies the existing record.
type SaveResult struct {
	RecordID     string
	AlreadySaved bool
}

// Backend performs the actual writes
type Backend interface {
	PersistSave(ctx context.Context, postID string, userID uint) (SaveResult, error)
	RetractSave(ctx context.Context, recordID string) error
}

// Outcome is reported once per executed item
type Outcome struct {
	Item   Item
	Result SaveResult
	Err    error
}

var (
	// ErrNoRecord means a delete had no record id to act on, so no backend call was made
	ErrNoRecord = errors.New("no saved record to delete")
	// ErrPanic wraps a panic raised by the backend
	ErrPanic = errors.New("backend panicked")
)

type Option func(*Queue)

func WithCooldown(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.cooldown = d
		}
	}
}

// WithCallTimeout bounds each backend call. Zero means no bound.
func WithCallTimeout(d time.Duration) Option {
	return func(q *Queue) { q.callTimeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithRecordResolver supplies the record id for a delete that was enqueued without one. It
// runs on the drain goroutine right before the delete executes.
func WithRecordResolver(fn func(Item) string) Option {
	return func(q *Queue) { q.resolve = fn }
}

// WithOnDone registers a callback invoked on the drain goroutine after each item
func WithOnDone(fn func(Outcome)) Option {
	return func(q *Queue) { q.onDone = fn }
}

// Queue is a FIFO of Items drained by at most one goroutine. The goroutine exists only while
// there is work or a cooldown to sit out.
type Queue struct {
	backend     Backend
	cooldown    time.Duration
	callTimeout time.Duration
	log         *zap.Logger
	metrics     *metrics.Metrics
	resolve     func(Item) string
	onDone      func(Outcome)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	items    []Item
	draining bool
	closed   bool
}

func New(backend Backend, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		backend:  backend,
		cooldown: DefaultCooldown,
		log:      zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends the item and returns without waiting for it to run. It reports false once
// the queue is closed.
func (q *Queue) Enqueue(item Item) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	start := !q.draining
	q.draining = true
	q.mu.Unlock()

	q.metrics.AddQueueDepth(1)
	if start {
		go q.drain()
	}
	return true
}

// Len returns the number of items not yet started
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Idle reports whether nothing is queued, running or cooling down
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.draining && len(q.items) == 0
}

// Close drops pending items and abandons the item in flight: its outcome is not reported.
// Close does not wait for the drain goroutine.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := len(q.items)
	q.items = nil
	q.mu.Unlock()

	q.cancel()
	q.metrics.AddQueueDepth(-float64(dropped))
	if dropped > 0 {
		q.log.Debug("Dropped pending save actions", zap.Int("count", dropped))
	}
}

func (q *Queue) drain() {
	for {
		item, ok := q.next()
		if !ok {
			return
		}

		out := q.execute(item)
		if q.ctx.Err() != nil {
			return
		}
		if q.onDone != nil {
			q.onDone(out)
		}

		timer := time.NewTimer(q.cooldown)
		select {
		case <-timer.C:
		case <-q.ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (q *Queue) next() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.items) == 0 {
		q.draining = false
		return Item{}, false
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	q.metrics.AddQueueDepth(-1)
	return item, true
}

func (q *Queue) execute(item Item) (out Outcome) {
	out.Item = item
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		q.report(out, time.Since(start))
	}()

	ctx, cancel := q.callContext()
	defer cancel()

	switch item.Action {
	case ActionSave:
		out.Result, out.Err = q.backend.PersistSave(ctx, item.PostID, item.UserID)
	case ActionDelete:
		if item.RecordID == "" && q.resolve != nil {
			item.RecordID = q.resolve(item)
			out.Item = item
		}
		if item.RecordID == "" {
			out.Err = ErrNoRecord
			return out
		}
		out.Err = q.backend.RetractSave(ctx, item.RecordID)
	default:
		out.Err = fmt.Errorf("unknown action %q", item.Action)
	}
	return out
}

func (q *Queue) callContext() (context.Context, context.CancelFunc) {
	if q.callTimeout > 0 {
		return context.WithTimeout(q.ctx, q.callTimeout)
	}
	return context.WithCancel(q.ctx)
}

func (q *Queue) report(out Outcome, took time.Duration) {
	fields := []zap.Field{
		zap.String("action", string(out.Item.Action)),
		zap.String("post_id", out.Item.PostID),
		zap.Uint("user_id", out.Item.UserID),
		zap.Duration("took", took),
	}

	label := "ok"
	switch {
	case errors.Is(out.Err, ErrNoRecord):
		label = "no_record"
		q.log.Debug("Skipped delete without a record", fields...)
	case out.Err != nil && q.ctx.Err() != nil:
		label = "abandoned"
	case out.Err != nil:
		label = "error"
		q.log.Error("Save action failed", append(fields, zap.Error(out.Err))...)
	case out.Result.AlreadySaved:
		label = "duplicate"
		q.log.Info("Post was already saved", append(fields, zap.String("record_id", out.Result.RecordID))...)
	default:
		q.log.Debug("Save action done", fields...)
	}
	q.metrics.ObserveQueueAction(string(out.Item.Action), label, took)
}
