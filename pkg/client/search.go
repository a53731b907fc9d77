package client

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SearchFunc runs one search for a settled term
type SearchFunc[R any] func(ctx context.Context, term string) ([]R, error)

// SearchResult is what the controller publishes for a term
type SearchResult[R any] struct {
	Term    string
	Results []R
	Err     error
}

// SearchController searches the last term typed once typing pauses. Results of a term that
// was superseded while its request was in flight are dropped, so the published results always
// belong to the latest term. An empty term clears the results without calling search.
type SearchController[R any] struct {
	search   SearchFunc[R]
	onResult func(SearchResult[R])
	debounce *Debouncer[string]

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	latest  string
	seq     uint64
	current SearchResult[R]
}

// NewSearchController waits delay after the last keystroke; onResult may be nil
func NewSearchController[R any](delay time.Duration, search SearchFunc[R], onResult func(SearchResult[R])) *SearchController[R] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &SearchController[R]{
		search:   search,
		onResult: onResult,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.debounce = NewDebouncer(delay, s.run)
	return s
}

// Type records the current content of the search box
func (s *SearchController[R]) Type(term string) {
	term = strings.TrimSpace(term)

	s.mu.Lock()
	s.latest = term
	s.seq++
	s.mu.Unlock()

	s.debounce.Push(term)
}

// Current returns the results of the latest settled term
func (s *SearchController[R]) Current() SearchResult[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close stops pending searches and cancels the one in flight
func (s *SearchController[R]) Close() {
	s.debounce.Stop()
	s.cancel()
}

func (s *SearchController[R]) run(term string) {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()

	if term == "" {
		s.publish(seq, SearchResult[R]{})
		return
	}

	results, err := s.search(s.ctx, term)
	s.publish(seq, SearchResult[R]{Term: term, Results: results, Err: err})
}

func (s *SearchController[R]) publish(seq uint64, res SearchResult[R]) {
	s.mu.Lock()
	if seq != s.seq || res.Term != s.latest {
		s.mu.Unlock()
		return
	}
	s.current = res
	s.mu.Unlock()

	if s.onResult != nil {
		s.onResult(res)
	}
}
