package poststats

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/anonto42/postacad/backend/internal/savequeue"
)

type memBackend struct {
	mu        sync.Mutex
	likes     map[string][]uint
	records   map[string]string // "post/user" -> record id
	owners    map[string]string // record id -> "post/user"
	nextID    int
	likeSets  [][]uint
	saveCalls int

	likeGate chan struct{}
	saveGate chan struct{}
	// afterLoad runs once LoadSaved has read the record, before it returns
	afterLoad func()
	saveErr  error
	getErr   error
	setErr   error
}

func newMemBackend() *memBackend {
	return &memBackend{
		likes:   map[string][]uint{},
		records: map[string]string{},
		owners:  map[string]string{},
	}
}

func pairKey(postID string, userID uint) string { return fmt.Sprintf("%s/%d", postID, userID) }

func (b *memBackend) PersistSave(ctx context.Context, postID string, userID uint) (savequeue.SaveResult, error) {
	if b.saveGate != nil {
		select {
		case <-b.saveGate:
		case <-ctx.Done():
			return savequeue.SaveResult{}, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveCalls++
	if b.saveErr != nil {
		return savequeue.SaveResult{}, b.saveErr
	}
	key := pairKey(postID, userID)
	if id, ok := b.records[key]; ok {
		return savequeue.SaveResult{RecordID: id, AlreadySaved: true}, nil
	}
	b.nextID++
	id := fmt.Sprintf("rec-%d", b.nextID)
	b.records[key] = id
	b.owners[id] = key
	return savequeue.SaveResult{RecordID: id}, nil
}

func (b *memBackend) RetractSave(_ context.Context, recordID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key, ok := b.owners[recordID]
	if !ok {
		return nil
	}
	delete(b.owners, recordID)
	delete(b.records, key)
	return nil
}

func (b *memBackend) GetLikes(_ context.Context, postID string) ([]uint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	likes, ok := b.likes[postID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return append([]uint{}, likes...), nil
}

func (b *memBackend) SetLikes(ctx context.Context, postID string, likes []uint) error {
	if b.likeGate != nil {
		select {
		case <-b.likeGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.likeSets = append(b.likeSets, append([]uint{}, likes...))
	if b.setErr != nil {
		return b.setErr
	}
	b.likes[postID] = append([]uint{}, likes...)
	return nil
}

func (b *memBackend) LoadSaved(_ context.Context, postID string, userID uint) (string, error) {
	b.mu.Lock()
	recordID := b.records[pairKey(postID, userID)]
	b.mu.Unlock()
	if b.afterLoad != nil {
		b.afterLoad()
	}
	return recordID, nil
}

func (b *memBackend) writes() [][]uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]uint{}, b.likeSets...)
}

func (b *memBackend) record(postID string, userID uint) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.records[pairKey(postID, userID)]
}

var errBackend = errors.New("backend unavailable")
