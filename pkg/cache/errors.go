package cache

import "go.trai.ch/zerr"

var (
	// ErrNilStore is returned when a cache is built without a store.
	ErrNilStore = zerr.New("cache store is nil")

	// ErrInvalidTTL is returned when the configured default TTL is not positive.
	ErrInvalidTTL = zerr.New("default ttl must be positive")

	// ErrEmptyKey is returned when a cache key is empty.
	ErrEmptyKey = zerr.New("cache key is empty")

	// ErrEncode is returned when a value cannot be serialized.
	ErrEncode = zerr.New("failed to encode cache value")

	// ErrDecode marks a stored value that cannot be deserialized.
	ErrDecode = zerr.New("failed to decode cache value")

	// ErrStore wraps failures of the underlying store.
	ErrStore = zerr.New("cache store failed")
)
