package models

import "time"

// Follow is a directed follower -> followed relationship between two users
type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  uint      `json:"follower_id" gorm:"index;uniqueIndex:idx_follower_following"`
	FollowingID uint      `json:"following_id" gorm:"index;uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time `json:"created_at"`
}

// FollowStatus answers "does the viewer follow this user"
type FollowStatus struct {
	UserID    uint `json:"user_id"`
	Following bool `json:"following"`
}
