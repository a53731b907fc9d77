package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/anonto42/postacad/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) ([]models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int64) ([]models.Post, error)
	ListPage(ctx context.Context, cursor string, limit int64) (*models.PostPage, error)
	ListByCreators(ctx context.Context, creatorIDs []uint, limit int64) ([]models.Post, error)
	SearchByCaption(ctx context.Context, term string, imagesOnly bool, limit int64) ([]models.Post, error)
	CountByCreator(ctx context.Context, creatorID uint) (posts int64, resources int64, err error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

var newestFirst = bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []uint{}
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := parsePostID(id)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &post, nil
}

// GetPostsByIDs loads the given posts newest first. Malformed or unknown ids are skipped.
func (r *MongoPostRepository) GetPostsByIDs(ctx context.Context, ids []string) ([]models.Post, error) {
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if objID, err := primitive.ObjectIDFromHex(id); err == nil {
			objIDs = append(objIDs, objID)
		}
	}
	if len(objIDs) == 0 {
		return []models.Post{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": objIDs}}, options.Find().SetSort(newestFirst))
}

// UpdatePost writes the editable fields of an existing post and bumps updated_at
func (r *MongoPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"caption":    post.Caption,
			"location":   post.Location,
			"tags":       post.Tags,
			"image_id":   post.ImageID,
			"image_url":  post.ImageURL,
			"file_id":    post.FileID,
			"file_url":   post.FileURL,
			"updated_at": post.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": post.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("post %s: %w", post.ID.Hex(), ErrNotFound)
	}
	return nil
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	objID, err := parsePostID(id)
	if err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListRecent returns the most recently created posts
func (r *MongoPostRepository) ListRecent(ctx context.Context, limit int64) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	return r.find(ctx, bson.M{}, opts)
}

// ListPage returns one page of the feed after the given cursor. An empty cursor starts at the
// top. NextCursor is empty on the last page.
func (r *MongoPostRepository) ListPage(ctx context.Context, cursor string, limit int64) (*models.PostPage, error) {
	filter := bson.M{}
	if cursor != "" {
		pos, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		filter = pos.filter()
	}

	// one extra document tells whether another page exists
	posts, err := r.find(ctx, filter, options.Find().SetSort(newestFirst).SetLimit(limit+1))
	if err != nil {
		return nil, err
	}
	return buildPage(posts, limit), nil
}

func buildPage(posts []models.Post, limit int64) *models.PostPage {
	page := &models.PostPage{Posts: posts}
	if int64(len(posts)) > limit {
		page.Posts = posts[:limit]
		last := page.Posts[len(page.Posts)-1]
		page.NextCursor = encodeCursor(feedCursor{UpdatedAt: last.UpdatedAt, ID: last.ID})
	}
	return page
}

// ListByCreators returns the newest posts written by any of the given users
func (r *MongoPostRepository) ListByCreators(ctx context.Context, creatorIDs []uint, limit int64) ([]models.Post, error) {
	if len(creatorIDs) == 0 {
		return []models.Post{}, nil
	}
	opts := options.Find().SetSort(newestFirst).SetLimit(limit)
	return r.find(ctx, bson.M{"creator_id": bson.M{"$in": creatorIDs}}, opts)
}

// SearchByCaption matches the term literally and case-insensitively inside captions.
// imagesOnly restricts the result to posts carrying an image.
func (r *MongoPostRepository) SearchByCaption(ctx context.Context, term string, imagesOnly bool, limit int64) ([]models.Post, error) {
	if term == "" {
		return []models.Post{}, nil
	}
	filter := bson.M{"caption": primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}}
	if imagesOnly {
		filter["image_url"] = bson.M{"$exists": true, "$ne": ""}
	}
	opts := options.Find().SetSort(newestFirst).SetLimit(limit)
	return r.find(ctx, filter, opts)
}

func (r *MongoPostRepository) CountByCreator(ctx context.Context, creatorID uint) (int64, int64, error) {
	posts, err := r.collection.CountDocuments(ctx, bson.M{"creator_id": creatorID})
	if err != nil {
		return 0, 0, err
	}
	resources, err := r.collection.CountDocuments(ctx, bson.M{"creator_id": creatorID, "is_resource": true})
	if err != nil {
		return 0, 0, err
	}
	return posts, resources, nil
}

func (r *MongoPostRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func parsePostID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("post id %q: %w", id, ErrInvalidID)
	}
	return objID, nil
}
