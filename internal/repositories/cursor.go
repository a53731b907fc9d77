package repositories

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// feedCursor marks the last post of a page. The feed is ordered by updated_at desc, then _id
// desc, so the pair is a strict position even when timestamps collide.
type feedCursor struct {
	UpdatedAt time.Time
	ID        primitive.ObjectID
}

// MongoDB keeps millisecond precision, so the cursor does too.
func encodeCursor(p feedCursor) string {
	raw := strconv.FormatInt(p.UpdatedAt.UnixMilli(), 10) + ":" + p.ID.Hex()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (feedCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return feedCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	millis, hex, ok := strings.Cut(string(raw), ":")
	if !ok {
		return feedCursor{}, ErrInvalidCursor
	}
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return feedCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return feedCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return feedCursor{UpdatedAt: time.UnixMilli(ms).UTC(), ID: id}, nil
}

// filter selects the documents strictly after the cursor position
func (p feedCursor) filter() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"updated_at": bson.M{"$lt": p.UpdatedAt}},
		bson.M{"updated_at": p.UpdatedAt, "_id": bson.M{"$lt": p.ID}},
	}}
}
