package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type User struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name"`
	Username    string         `json:"username" gorm:"uniqueIndex;size:50"`
	Email       string         `json:"email" gorm:"uniqueIndex"`
	Bio         string         `json:"bio"`
	ImageURL    string         `json:"image_url"`
	Password    string         `json:"-"`                                         // bcrypt hash
	FirebaseUID *string        `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // nil for local accounts
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// UserCompact is the author block embedded in post listings
type UserCompact struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	ImageURL string `json:"image_url"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		ImageURL: u.ImageURL,
	}
}

type CreateLocalUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=50"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=50"`
}

type UpdateUserRequest struct {
	Name     string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Username string `json:"username,omitempty" validate:"omitempty,min=2,max=50"`
	Bio      string `json:"bio,omitempty" validate:"omitempty,max=2200"`
	ImageURL string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// ProfileStats are the counters shown on a profile page
type ProfileStats struct {
	UserID         uint  `json:"user_id"`
	Followers      int64 `json:"followers"`
	Following      int64 `json:"following"`
	PostsCount     int64 `json:"posts_count"`
	ResourcesCount int64 `json:"resources_count"`
	IsFollowing    bool  `json:"is_following"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
