package client

import (
	"context"
	"errors"
	"sync"
)

// FeedPageSize matches the grid of the web client
const FeedPageSize = 9

// ErrLoading is returned by LoadMore while another page is being fetched
var ErrLoading = errors.New("a page is already loading")

// ErrReset is returned by a LoadMore whose page was fetched before a Reset
var ErrReset = errors.New("feed was reset while the page loaded")

// FeedSource fetches one feed page; *Client satisfies it
type FeedSource interface {
	Feed(ctx context.Context, cursor string, limit int) (*FeedPage, error)
}

// FeedLoader accumulates the infinite feed page by page
type FeedLoader struct {
	source   FeedSource
	pageSize int

	mu      sync.Mutex
	posts   []Post
	cursor  string
	hasMore bool
	loading bool
	// gen changes on Reset; a load begun under an older gen is discarded
	gen uint64
}

func NewFeedLoader(source FeedSource) *FeedLoader {
	return &FeedLoader{source: source, pageSize: FeedPageSize, hasMore: true}
}

// LoadMore fetches the next page and returns its posts. It returns nil, nil once the feed
// is exhausted. A failed fetch leaves the loader where it was, so it can be retried.
func (l *FeedLoader) LoadMore(ctx context.Context) ([]Post, error) {
	l.mu.Lock()
	if !l.hasMore {
		l.mu.Unlock()
		return nil, nil
	}
	if l.loading {
		l.mu.Unlock()
		return nil, ErrLoading
	}
	l.loading = true
	cursor, gen := l.cursor, l.gen
	l.mu.Unlock()

	page, err := l.source.Feed(ctx, cursor, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return nil, ErrReset
	}
	l.loading = false
	if err != nil {
		return nil, err
	}

	l.posts = append(l.posts, page.Posts...)
	l.cursor = page.NextCursor
	l.hasMore = page.HasMore && page.NextCursor != ""
	return page.Posts, nil
}

// HasMore reports whether another page may exist
func (l *FeedLoader) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Posts returns every post loaded so far, in feed order
func (l *FeedLoader) Posts() []Post {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Post(nil), l.posts...)
}

// Reset starts over from the first page. A load still in flight is discarded when it returns.
func (l *FeedLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.loading = false
	l.posts = nil
	l.cursor = ""
	l.hasMore = true
}
