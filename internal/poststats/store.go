package poststats

import (
	"context"
	"errors"

	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/anonto42/postacad/backend/internal/savequeue"
)

// Store is the Backend over the post and saved-post repositories
type Store struct {
	likes repositories.LikeRepository
	saved repositories.SavedPostRepository
}

func NewStore(likes repositories.LikeRepository, saved repositories.SavedPostRepository) *Store {
	return &Store{likes: likes, saved: saved}
}

func (s *Store) PersistSave(ctx context.Context, postID string, userID uint) (savequeue.SaveResult, error) {
	record, err := s.saved.SavePost(ctx, userID, postID)
	if errors.Is(err, repositories.ErrAlreadySaved) && record != nil {
		return savequeue.SaveResult{RecordID: record.ID, AlreadySaved: true}, nil
	}
	if err != nil {
		return savequeue.SaveResult{}, err
	}
	return savequeue.SaveResult{RecordID: record.ID}, nil
}

// RetractSave deletes the record. A record that is already gone counts as deleted.
func (s *Store) RetractSave(ctx context.Context, recordID string) error {
	err := s.saved.DeleteSavedPost(ctx, recordID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Store) GetLikes(ctx context.Context, postID string) ([]uint, error) {
	return s.likes.GetLikes(ctx, postID)
}

func (s *Store) SetLikes(ctx context.Context, postID string, likes []uint) error {
	return s.likes.SetLikes(ctx, postID, likes)
}

func (s *Store) LoadSaved(ctx context.Context, postID string, userID uint) (string, error) {
	record, err := s.saved.FindSavedPost(ctx, userID, postID)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.ID, nil
}
