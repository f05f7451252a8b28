package whoop

import "errors"

var (
	ErrNotFound         = errors.New("whoop tokens not found")
	ErrInvalidExpiresAt = errors.New("expires_at is not a valid RFC 3339 timestamp")
)
