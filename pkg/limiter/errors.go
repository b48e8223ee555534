package limiter

import "go.trai.ch/zerr"

var (
	// ErrInvalidLimit is returned when a Limit has a non-positive window or quota.
	ErrInvalidLimit = zerr.New("invalid limit: window and max requests must be positive")

	// ErrEmptyIdentity is returned when an identity key is empty.
	ErrEmptyIdentity = zerr.New("empty identity")

	// ErrUnknownCategory is returned when a Guard has no policy for a category.
	ErrUnknownCategory = zerr.New("unknown rate limit category")

	// ErrInvalidResponse is returned when the Redis script replies with an unexpected shape.
	ErrInvalidResponse = zerr.New("invalid lua response format")
)
