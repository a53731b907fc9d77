package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a post or a resource for sale, stored in MongoDB
type Post struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	CreatorID uint               `json:"creator_id" bson:"creator_id"`
	Caption   string             `json:"caption" bson:"caption"`
	Location  string             `json:"location,omitempty" bson:"location,omitempty"`
	Tags      []string           `json:"tags" bson:"tags"`
	Likes     []uint             `json:"likes" bson:"likes"` // ids of users who like the post

	ImageID  string `json:"image_id,omitempty" bson:"image_id,omitempty"`
	ImageURL string `json:"image_url,omitempty" bson:"image_url,omitempty"`
	FileID   string `json:"file_id,omitempty" bson:"file_id,omitempty"`
	FileURL  string `json:"file_url,omitempty" bson:"file_url,omitempty"`

	IsResource   bool   `json:"is_resource" bson:"is_resource"`
	Price        int64  `json:"price" bson:"price"` // minor currency units
	Availability bool   `json:"availability" bson:"availability"`
	Description  string `json:"description,omitempty" bson:"description,omitempty"`
	ResourceType string `json:"resource_type,omitempty" bson:"resource_type,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// IsLocked reports whether downloads of this post need a completed purchase
func (p *Post) IsLocked() bool {
	return p.Price > 0
}

// CreatePostRequest defines the request body for creating a new post.
// FileIDs reference objects previously uploaded through POST /files.
type CreatePostRequest struct {
	Caption      string   `json:"caption" validate:"max=2200,required_without=FileIDs"`
	FileIDs      []string `json:"file_ids,omitempty" validate:"omitempty,max=2,dive,uuid"`
	Location     string   `json:"location,omitempty" validate:"max=100"`
	Tags         string   `json:"tags,omitempty"`
	IsResource   bool     `json:"is_resource"`
	Price        int64    `json:"price" validate:"min=0"`
	Availability *bool    `json:"availability,omitempty"`
	Description  string   `json:"description,omitempty" validate:"max=2200"`
	ResourceType string   `json:"resource_type,omitempty" validate:"max=50"`
}

// UpdatePostRequest defines the request body for updating an existing post
type UpdatePostRequest struct {
	Caption  string  `json:"caption,omitempty" validate:"max=2200"`
	FileID   string  `json:"file_id,omitempty" validate:"omitempty,uuid"`
	Location *string `json:"location,omitempty" validate:"omitempty,max=100"`
	Tags     *string `json:"tags,omitempty"`
}

// ParseTags turns "a, b ,c" into [a b c], dropping empty entries
func ParseTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(strings.ReplaceAll(raw, " ", ""), ",") {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// PostPage is one page of a cursor-paginated listing
type PostPage struct {
	Posts      []Post `json:"posts"`
	NextCursor string `json:"next_cursor,omitempty"`
}
