package repositories

import "errors"

var (
	ErrNotFound         = errors.New("record not found")
	ErrAlreadySaved     = errors.New("post already saved")
	ErrAlreadyFollowing = errors.New("already following this user")
	ErrAlreadyPurchased = errors.New("resource already purchased")
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidCursor    = errors.New("invalid cursor")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
