package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/postacad/backend/internal/models"
	"gorm.io/gorm"
)

// SavedPostRepository defines the interface for saved post operations
type SavedPostRepository interface {
	// SavePost persists a save for the pair. When the pair is already saved it returns the
	// existing record together with ErrAlreadySaved.
	SavePost(ctx context.Context, userID uint, postID string) (*models.SavedPost, error)
	DeleteSavedPost(ctx context.Context, recordID string) error
	FindSavedPost(ctx context.Context, userID uint, postID string) (*models.SavedPost, error)
	GetSavedPostByID(ctx context.Context, recordID string) (*models.SavedPost, error)
	GetSavedPostsByUser(ctx context.Context, userID uint) ([]models.SavedPost, error)
	GetSavedPostIDs(ctx context.Context, userID uint, postIDs []string) (map[string]bool, error)
}

// PostgresSavedPostRepository implements SavedPostRepository
type PostgresSavedPostRepository struct {
	db *gorm.DB
}

func NewPostgresSavedPostRepository(db *gorm.DB) *PostgresSavedPostRepository {
	return &PostgresSavedPostRepository{db: db}
}

func (r *PostgresSavedPostRepository) SavePost(ctx context.Context, userID uint, postID string) (*models.SavedPost, error) {
	existing, err := r.FindSavedPost(ctx, userID, postID)
	if err == nil {
		return existing, ErrAlreadySaved
	}
	if !isNotFound(err) {
		return nil, err
	}

	saved := &models.SavedPost{UserID: userID, PostID: postID}
	if err := r.db.WithContext(ctx).Create(saved).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// a concurrent save of the pair won the unique index
		existing, err := r.FindSavedPost(ctx, userID, postID)
		if err != nil {
			return nil, err
		}
		return existing, ErrAlreadySaved
	}
	return saved, nil
}

func (r *PostgresSavedPostRepository) DeleteSavedPost(ctx context.Context, recordID string) error {
	res := r.db.WithContext(ctx).Where("id = ?", recordID).Delete(&models.SavedPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("saved post %s: %w", recordID, ErrNotFound)
	}
	return nil
}

func (r *PostgresSavedPostRepository) FindSavedPost(ctx context.Context, userID uint, postID string) (*models.SavedPost, error) {
	var saved models.SavedPost
	err := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).First(&saved).Error
	if err != nil {
		return nil, notFound(err, "saved post")
	}
	return &saved, nil
}

func (r *PostgresSavedPostRepository) GetSavedPostByID(ctx context.Context, recordID string) (*models.SavedPost, error) {
	var saved models.SavedPost
	if err := r.db.WithContext(ctx).Where("id = ?", recordID).First(&saved).Error; err != nil {
		return nil, notFound(err, "saved post")
	}
	return &saved, nil
}

func (r *PostgresSavedPostRepository) GetSavedPostsByUser(ctx context.Context, userID uint) ([]models.SavedPost, error) {
	saved := []models.SavedPost{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&saved).Error
	return saved, err
}

func (r *PostgresSavedPostRepository) GetSavedPostIDs(ctx context.Context, userID uint, postIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(postIDs) == 0 {
		return result, nil
	}
	var saved []models.SavedPost
	err := r.db.WithContext(ctx).Where("user_id = ? AND post_id IN ?", userID, postIDs).Find(&saved).Error
	if err != nil {
		return nil, err
	}
	for _, s := range saved {
		result[s.PostID] = true
	}
	return result, nil
}
