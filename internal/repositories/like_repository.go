package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/postacad/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LikeRepository reads and writes the like set stored on each post.
// Writes replace the whole set, so the last writer wins.
type LikeRepository interface {
	GetLikes(ctx context.Context, postID string) ([]uint, error)
	SetLikes(ctx context.Context, postID string, likes []uint) error
	ListLikedBy(ctx context.Context, userID uint, limit int64) ([]models.Post, error)
}

// MongoLikeRepository implements LikeRepository on the posts collection
type MongoLikeRepository struct {
	collection *mongo.Collection
}

// NewMongoLikeRepository creates a new MongoLikeRepository
func NewMongoLikeRepository(db *mongo.Database) *MongoLikeRepository {
	return &MongoLikeRepository{collection: db.Collection("posts")}
}

func (r *MongoLikeRepository) GetLikes(ctx context.Context, postID string) ([]uint, error) {
	objID, err := parsePostID(postID)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Likes []uint `bson:"likes"`
	}
	opts := options.FindOne().SetProjection(bson.M{"likes": 1})
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("post %s: %w", postID, ErrNotFound)
		}
		return nil, err
	}
	if doc.Likes == nil {
		doc.Likes = []uint{}
	}
	return doc.Likes, nil
}

// SetLikes replaces the like set. updated_at is left alone so liking does not reorder the feed.
func (r *MongoLikeRepository) SetLikes(ctx context.Context, postID string, likes []uint) error {
	objID, err := parsePostID(postID)
	if err != nil {
		return err
	}
	if likes == nil {
		likes = []uint{}
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": bson.M{"likes": likes}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	return nil
}

// ListLikedBy returns the newest posts whose like set contains the user
func (r *MongoLikeRepository) ListLikedBy(ctx context.Context, userID uint, limit int64) ([]models.Post, error) {
	opts := options.Find().SetSort(newestFirst).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"likes": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
