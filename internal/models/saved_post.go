package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SavedPost represents a bookmarked/saved post by a user. The ID is the opaque
// record identifier handed back to clients once the save is persisted.
type SavedPost struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_user_post_save"`
	PostID    string    `json:"post_id" gorm:"index;uniqueIndex:idx_user_post_save"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *SavedPost) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
