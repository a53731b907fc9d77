package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"go.uber.org/zap"
)

const savedListTTL = 5 * time.Minute

// SavedPostRepository caches each user's saved list in Redis and drops the entry on every
// write for that user. Cache failures fall through to the wrapped repository.
type SavedPostRepository struct {
	repositories.SavedPostRepository
	store Store
	log   *zap.Logger
}

func NewSavedPostRepository(inner repositories.SavedPostRepository, store Store, log *zap.Logger) *SavedPostRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &SavedPostRepository{SavedPostRepository: inner, store: store, log: log}
}

func savedListKey(userID uint) string {
	return fmt.Sprintf("saved:user:%d", userID)
}

func (r *SavedPostRepository) GetSavedPostsByUser(ctx context.Context, userID uint) ([]models.SavedPost, error) {
	key := savedListKey(userID)
	if raw, err := r.store.Get(ctx, key); err == nil {
		var saved []models.SavedPost
		if err := json.Unmarshal(raw, &saved); err == nil {
			return saved, nil
		}
		r.log.Warn("Dropping undecodable cache entry", zap.String("key", key))
	} else if !errors.Is(err, ErrMiss) {
		r.log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	saved, err := r.SavedPostRepository.GetSavedPostsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(saved); err == nil {
		if err := r.store.SetEx(ctx, key, raw, savedListTTL); err != nil {
			r.log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return saved, nil
}

func (r *SavedPostRepository) SavePost(ctx context.Context, userID uint, postID string) (*models.SavedPost, error) {
	saved, err := r.SavedPostRepository.SavePost(ctx, userID, postID)
	if err == nil {
		r.invalidate(ctx, userID)
	}
	return saved, err
}

func (r *SavedPostRepository) DeleteSavedPost(ctx context.Context, recordID string) error {
	record, err := r.SavedPostRepository.GetSavedPostByID(ctx, recordID)
	if err != nil {
		return err
	}
	if err := r.SavedPostRepository.DeleteSavedPost(ctx, recordID); err != nil {
		return err
	}
	r.invalidate(ctx, record.UserID)
	return nil
}

func (r *SavedPostRepository) invalidate(ctx context.Context, userID uint) {
	if err := r.store.Del(ctx, savedListKey(userID)); err != nil {
		r.log.Warn("Cache invalidation failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}
